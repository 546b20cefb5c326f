package cmd

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/webitel/im-realtime-service/config"
	grpcsrv "github.com/webitel/im-realtime-service/infra/server/grpc"
	httpsrv "github.com/webitel/im-realtime-service/infra/server/http"
	"github.com/webitel/im-realtime-service/internal/adapter/media"
	"github.com/webitel/im-realtime-service/internal/adapter/postgres"
	"github.com/webitel/im-realtime-service/internal/adapter/presence"
	"github.com/webitel/im-realtime-service/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	amqphandler "github.com/webitel/im-realtime-service/internal/handler/amqp"
	grpchandler "github.com/webitel/im-realtime-service/internal/handler/grpc"
	httphandler "github.com/webitel/im-realtime-service/internal/handler/http"
	"github.com/webitel/im-realtime-service/internal/handler/ws"
	"github.com/webitel/im-realtime-service/internal/service"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(Options(cfg))
}

// Options assembles the application graph. Optional adapters join only when
// their config section enables them.
func Options(cfg *config.Config) fx.Option {
	opts := []fx.Option{
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		fx.Supply(cfg),
		fx.Provide(
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
			ProvideRegistry,
			ProvideMetrics,
			func(reg *prometheus.Registry) prometheus.Gatherer { return reg },
			fx.Annotate(
				func() string { return version },
				fx.ResultTags(`name:"version"`),
			),
		),
		fx.Invoke(func(*sdktrace.TracerProvider) {}),

		// [MODULE_ORDER] hooks stop in reverse: servers, then the registry, then push and storage
		postgres.Module,
		pubsub.Module,
		registry.Module,
		service.Module,
	}

	if cfg.Redis.Addr != "" {
		opts = append(opts, presence.Module)
	}
	if cfg.Media.Bucket != "" {
		opts = append(opts, media.Module)
	}
	if cfg.Relay.Enabled {
		opts = append(opts, amqphandler.Module)
	}

	opts = append(opts,
		ws.Module,
		httphandler.Module,
		httpsrv.Module,
		grpcsrv.Module,
		grpchandler.Module,
		fx.Invoke(NotifySystemd),
	)

	return fx.Options(opts...)
}
