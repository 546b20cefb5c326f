package service

import (
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"go.uber.org/fx"
)

type routerParams struct {
	fx.In

	Config   *config.Config
	Hub      registry.Hubber
	Store    Persister
	Notifier Notifier
	Relay    Relay `optional:"true"`
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, hub registry.Hubber, logger *slog.Logger, m *metrics.Metrics) *DeliveryService {
				return NewDeliveryService(hub, cfg.WS.SendBuffer, logger, m)
			},
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			func(p routerParams) *Router {
				return NewRouter(p.Hub, p.Store, p.Notifier, p.Logger.With("component", "router"),
					WithNotifyTimeout(p.Config.Delivery.NotifyTimeout),
					WithMetrics(p.Metrics),
					WithRelay(p.Relay),
				)
			},
			fx.As(new(MessageRouter)),
		),
	),

	// [DECORATION_LAYER] Intercept collaborators to add cross-cutting concerns
	fx.Decorate(func(orig Notifier, logger *slog.Logger) Notifier {
		return NewNotifierMiddleware(orig, logger)
	}),
	fx.Decorate(func(orig Persister, logger *slog.Logger) Persister {
		return NewPersisterMiddleware(orig, logger)
	}),
)
