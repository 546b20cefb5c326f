package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("postgres",
	fx.Provide(
		ProvideDB,
		func(db *sql.DB) DBTX { return db },
		NewMessageRepository,
		NewCallLogRepository,
		NewPushTokenRepository,
		fx.Annotate(
			func(r *MessageRepository) service.Persister { return r },
			fx.As(new(service.Persister)),
		),
	),
	// open and migrate before anything else starts; close after everything stopped
	fx.Invoke(func(*sql.DB) {}),
)

// ProvideDB opens the pool when the application starts and closes it on stop.
func ProvideDB(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := Open(context.Background(), cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Database.Migrate {
				return nil
			}
			if err := Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("DB_MIGRATIONS_APPLIED")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}
