package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
)

func TestDeliveryService_SubscribeUnsubscribe(t *testing.T) {
	hub := registry.NewHub(registry.WithSendTimeout(20 * time.Millisecond))
	t.Cleanup(hub.Shutdown)

	m := metrics.New(prometheus.NewRegistry())
	svc := NewDeliveryService(hub, 8, slog.New(slog.NewTextHandler(io.Discard, nil)), m)

	conn, err := svc.Subscribe(context.Background(), "A", registry.ConnectMetadata{Platform: "web"})
	require.NoError(t, err)
	assert.True(t, hub.IsConnected("A"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))

	svc.Unsubscribe("A", conn.GetID())
	svc.Unsubscribe("A", conn.GetID())

	assert.False(t, hub.IsConnected("A"))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveConnections))
}

func TestDeliveryService_RejectsEmptyIdentity(t *testing.T) {
	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)

	svc := NewDeliveryService(hub, 8, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	conn, err := svc.Subscribe(context.Background(), "", registry.ConnectMetadata{})
	assert.ErrorIs(t, err, model.ErrInvalidIdentity)
	assert.Nil(t, conn)
	assert.Empty(t, hub.OnlineUserIDs())
}
