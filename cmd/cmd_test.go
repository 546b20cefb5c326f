package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"go.uber.org/fx"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestOptions_GraphIsComplete(t *testing.T) {
	cfg := loadDefaults(t)
	require.NoError(t, fx.ValidateApp(Options(cfg)))
}

func TestOptions_WithOptionalAdapters(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Redis.Addr = "127.0.0.1:6379"
	cfg.Media.Bucket = "im-media"
	cfg.Relay.Enabled = true

	require.NoError(t, fx.ValidateApp(Options(cfg)))
}

func TestPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(model.HubStats{
			TotalUsers:       2,
			TotalConnections: 3,
			Uptime:           90 * time.Second,
			Users:            []model.UserStats{{UserID: "alice", Connections: 2}, {UserID: "bob", Connections: 1}},
		})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "version": "1.0.0"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	snap := poll(context.Background(), srv.Client(), srv.URL)

	require.NoError(t, snap.Err)
	assert.Equal(t, 3, snap.Stats.TotalConnections)
	assert.Len(t, snap.Stats.Users, 2)
	assert.Equal(t, "degraded", snap.Health["status"])

	text := describe(snap)
	assert.Contains(t, text, "connections 3")
	assert.Contains(t, text, "uptime 1m30s")
	assert.Contains(t, text, "fg:yellow")
}

func TestPoll_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	snap := poll(context.Background(), &http.Client{Timeout: time.Second}, srv.URL)
	assert.Error(t, snap.Err)
	assert.Contains(t, describe(snap), "unreachable")
}
