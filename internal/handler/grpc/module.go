package grpc

import (
	"context"
	"database/sql"
	"log/slog"

	grpcsrv "github.com/webitel/im-realtime-service/infra/server/grpc"
	"go.uber.org/fx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var Module = fx.Module("health-grpc",
	fx.Provide(
		func(db *sql.DB, logger *slog.Logger) *HealthReporter {
			return NewHealthReporter(db, 0, logger.With("component", "health"))
		},
	),
	fx.Invoke(RegisterHealthServices),
)

func RegisterHealthServices(
	lc fx.Lifecycle,
	server *grpcsrv.Server,
	reporter *HealthReporter,
) {
	healthpb.RegisterHealthServer(server.Server, reporter.Server())
	reflection.Register(server.Server)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			reporter.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			reporter.Stop()
			return nil
		},
	})
}
