package presence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"go.uber.org/fx"
)

// Module is only added to the graph when redis.addr is configured.
var Module = fx.Module("presence",
	fx.Provide(
		ProvideClient,
		ProvideMirror,
		fx.Annotate(
			func(m *RedisMirror) registry.PresenceObserver { return m },
			fx.ResultTags(registry.ObserverGroup),
		),
	),
)

func ProvideClient(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("presence: connect to redis at %s: %w", cfg.Redis.Addr, err)
			}
			logger.Info("REDIS_CONNECTED", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb, nil
}

func ProvideMirror(lc fx.Lifecycle, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*RedisMirror, error) {
	m, err := NewRedisMirror(rdb, cfg.Redis.KeyPrefix, cfg.Service.ID, cfg.Redis.Timeout, logger)
	if err != nil {
		return nil, err
	}

	// Appended after the client hook: starts after Ping, stops before Close.
	lc.Append(fx.Hook{
		OnStart: m.Reset,
		OnStop:  m.Reset,
	})

	return m, nil
}
