package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS
type Deliverer interface {
	Subscribe(ctx context.Context, userID string, md registry.ConnectMetadata) (registry.Connector, error)
	Unsubscribe(userID string, connID uuid.UUID)
}

type DeliveryService struct {
	hub        registry.Hubber
	bufferSize int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewDeliveryService(hub registry.Hubber, bufferSize int, logger *slog.Logger, m *metrics.Metrics) *DeliveryService {
	return &DeliveryService{
		hub:        hub,
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    m,
	}
}

// [SUBSCRIBE] HANDLES CONNECTION LIFECYCLE INITIATION
// Returns model.ErrInvalidIdentity for an empty identity; the caller must refuse the transport.
func (s *DeliveryService) Subscribe(ctx context.Context, userID string, md registry.ConnectMetadata) (registry.Connector, error) {
	if userID == "" {
		return nil, model.ErrInvalidIdentity
	}

	conn := registry.NewConnector(ctx, userID, s.bufferSize, md)
	if err := s.hub.Register(conn); err != nil {
		conn.Close()
		return nil, err
	}

	s.metrics.ConnectionOpened()
	return conn, nil
}

// [UNSUBSCRIBE] idempotent; the hub closes the connector
func (s *DeliveryService) Unsubscribe(userID string, connID uuid.UUID) {
	if s.hub.Unregister(userID, connID) {
		s.metrics.ConnectionClosed()
	}
}
