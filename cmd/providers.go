package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/infra/logging"
	"github.com/webitel/im-realtime-service/infra/tracing"
	"github.com/webitel/im-realtime-service/internal/metrics"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// ProvideLogger installs the service logger as the slog default and follows
// log.level changes in the config file.
func ProvideLogger(lc fx.Lifecycle, cfg *config.Config) *slog.Logger {
	l := logging.New(cfg.Log, ServiceName)
	logger := l.With("service", ServiceName, "node", cfg.Service.ID)
	slog.SetDefault(logger)

	cfg.OnChange(func(next *config.Config) {
		lvl := logging.ParseLevel(next.Log.Level)
		if lvl != l.Level.Level() {
			l.Level.Set(lvl)
			logger.Info("LOG_LEVEL_CHANGED", "level", lvl.String())
		}
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return l.Close()
		},
	})

	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

func ProvideTracerProvider(lc fx.Lifecycle, cfg *config.Config) *sdktrace.TracerProvider {
	tp := tracing.NewProvider(tracing.Info{
		Name:      ServiceName,
		Namespace: ServiceNamespace,
		Version:   version,
		NodeID:    cfg.Service.ID,
	}, cfg.Tracing.SampleRatio)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}

// ProvideRegistry returns a private registry carrying the runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

// NotifySystemd reports readiness once every server hook has started and keeps
// the watchdog fed when WatchdogSec is configured. Outside systemd both calls are no-ops.
func NotifySystemd(lc fx.Lifecycle, logger *slog.Logger) {
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
			if err != nil {
				logger.Warn("SD_NOTIFY_FAILED", "err", err)
			} else if sent {
				logger.Info("SD_NOTIFY_READY")
			}

			interval, err := daemon.SdWatchdogEnabled(false)
			if err != nil || interval == 0 {
				return nil
			}
			go watchdog(interval/2, stop)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return nil
		},
	})
}

func watchdog(every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
