package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/adapter/postgres"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

const PushSource = "im-realtime-service"

var Module = fx.Module("pubsub",
	fx.Provide(
		ProvidePublisher,
		func(r *postgres.PushTokenRepository) TokenSource { return r },
		func(cfg *config.Config, pub message.Publisher, tokens TokenSource, logger *slog.Logger) (*PushDispatcher, error) {
			return NewPushDispatcher(pub, tokens, DispatcherConfig{
				Topic:            cfg.AMQP.PushQueue,
				Source:           PushSource,
				CacheSize:        cfg.Push.TokenCacheSize,
				CacheTTL:         cfg.Push.TokenCacheTTL,
				BreakerFailures:  cfg.Push.BreakerFailures,
				BreakerOpenFor:   cfg.Push.BreakerOpenFor,
				BreakerHalfProbe: cfg.Push.BreakerHalfProbe,
			}, logger.With("component", "push"))
		},
		fx.Annotate(
			func(d *PushDispatcher) service.Notifier { return d },
			fx.As(new(service.Notifier)),
		),
	),
	fx.Invoke(func(*PushDispatcher) {}),
)

// ProvidePublisher builds the decorated publisher and closes it on stop.
func ProvidePublisher(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := NewPublisher(cfg.AMQP, logger)
	if err != nil {
		return nil, err
	}

	decorated, err := WithTracing(pub)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pub.Close()
		},
	})

	return decorated, nil
}
