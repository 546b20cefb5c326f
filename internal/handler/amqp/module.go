package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

// Module is only added to the graph when relay.enabled is set.
var Module = fx.Module("relay",
	fx.Provide(
		ProvideTransport,
		NewWatermillRouter,
		func(cfg *config.Config, t *pubsub.RelayTransport, logger *slog.Logger, m *metrics.Metrics) (*Relay, error) {
			pub, err := pubsub.WithTracing(t.Publisher)
			if err != nil {
				return nil, err
			}
			return NewRelay(pub, cfg.Relay.Exchange, cfg.Service.ID, logger.With("component", "relay"), m), nil
		},
		func(cfg *config.Config, hub registry.Hubber, logger *slog.Logger, m *metrics.Metrics) *Consumer {
			return NewConsumer(hub, cfg.Service.ID, logger.With("component", "relay"), m)
		},
		fx.Annotate(
			func(r *Relay) service.Relay { return r },
			fx.As(new(service.Relay)),
		),
	),
	fx.Invoke(RunRouter),
)

func ProvideTransport(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) (*pubsub.RelayTransport, error) {
	t, err := pubsub.NewRelayTransport(cfg.AMQP, cfg.Service.ID, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Close()
		},
	})
	return t, nil
}

// RunRouter starts consuming on start and waits until the subscription is live.
func RunRouter(lc fx.Lifecycle, cfg *config.Config, router *message.Router, t *pubsub.RelayTransport, c *Consumer, logger *slog.Logger) {
	RegisterHandlers(router, t.Subscriber, cfg.Relay.Exchange, c, logger.With("component", "relay"))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("AMQP_RELAY_STOPPED", "err", err)
				}
			}()

			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(ctx context.Context) error {
			return router.Close()
		},
	})
}
