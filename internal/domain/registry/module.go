package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"go.uber.org/fx"
)

// ObserverGroup is the fx value group collecting PresenceObserver implementations.
const ObserverGroup = `group:"presence_observers"`

type hubParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	Observers []PresenceObserver `group:"presence_observers"`
}

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(p hubParams) *Hub {
			opts := []Option{
				WithMailboxSize(p.Config.Registry.MailboxSize),
				WithSendTimeout(p.Config.Registry.SendTimeout),
				WithLogger(p.Logger.With("component", "registry")),
			}
			for _, o := range p.Observers {
				opts = append(opts, WithPresenceObserver(o))
			}
			return NewHub(opts...)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
		fx.Annotate(
			NewMetricsObserver,
			fx.As(new(PresenceObserver)),
			fx.ResultTags(ObserverGroup),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h *Hub) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Stop all Actor goroutines
				return nil
			},
		})
	}),
)

// MetricsObserver keeps the online-users gauge in step with the registry.
type MetricsObserver struct {
	metrics *metrics.Metrics
}

func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnPresenceChange(online, offline []string) {
	o.metrics.PresenceChanged(len(online), len(offline))
}
