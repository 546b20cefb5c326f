package ws

import (
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/infra/auth"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

type handlerParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	Deliverer service.Deliverer
	Router    service.MessageRouter
	Resolver  *auth.Resolver
	Hub       registry.Hubber
	Metrics   *metrics.Metrics
	Version   string `name:"version"`
}

var Module = fx.Module("ws",
	fx.Provide(func(p handlerParams) *WSHandler {
		return NewWSHandler(
			p.Logger.With("component", "ws"),
			p.Deliverer,
			p.Router,
			p.Resolver,
			p.Hub,
			p.Metrics,
			Options{
				Config:         p.Config.WS,
				AllowedOrigins: p.Config.HTTP.AllowedOrigins,
				SendTimeout:    p.Config.Registry.SendTimeout,
				Version:        p.Version,
			},
		)
	}),
)
