package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)
	assert.Equal(t, 256, cfg.WS.SendBuffer)
	assert.Equal(t, 1024, cfg.Registry.MailboxSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Registry.SendTimeout)
	assert.Equal(t, 3*time.Second, cfg.Delivery.NotifyTimeout)
	assert.Equal(t, "im_push.requests.v1", cfg.AMQP.PushQueue)
	assert.Equal(t, time.Minute, cfg.Push.TokenCacheTTL)
	assert.Empty(t, cfg.AMQP.URL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.Relay.Enabled)
	assert.Equal(t, "im_realtime.relay.v1", cfg.Relay.Exchange)
	assert.Empty(t, cfg.Auth.Secret)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":18080"
delivery:
  notify_timeout: 1500ms
ws:
  send_buffer: 32
log:
  level: debug
`), 0o600))

	t.Setenv("IM_REALTIME_AUTH_SECRET", "s3cret")
	t.Setenv("IM_REALTIME_REGISTRY_MAILBOX_SIZE", "64")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":18080", cfg.HTTP.Addr)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delivery.NotifyTimeout)
	assert.Equal(t, 32, cfg.WS.SendBuffer)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 64, cfg.Registry.MailboxSize)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.WS.PingInterval = time.Minute
	cfg.WS.PongTimeout = 30 * time.Second
	cfg.Registry.MailboxSize = 0
	cfg.Log.Format = "xml"
	cfg.Relay.Enabled = true
	cfg.Relay.Exchange = ""
	cfg.Push.TokenCacheTTL = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws.ping_interval")
	assert.Contains(t, err.Error(), "registry.mailbox_size")
	assert.Contains(t, err.Error(), "log.format")
	assert.Contains(t, err.Error(), "relay.exchange")
	assert.Contains(t, err.Error(), "push.token_cache_ttl")
}
