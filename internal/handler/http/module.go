package httphandler

import (
	"database/sql"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/webitel/im-realtime-service/internal/adapter/media"
	"github.com/webitel/im-realtime-service/internal/adapter/postgres"
	"github.com/webitel/im-realtime-service/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/service"
	"go.uber.org/fx"
)

type apiParams struct {
	fx.In

	Logger   *slog.Logger
	Router   service.MessageRouter
	Messages *postgres.MessageRepository
	Calls    *postgres.CallLogRepository
	Tokens   *postgres.PushTokenRepository
	Push     *pubsub.PushDispatcher
	Uploader *media.Uploader `optional:"true"`
	Hub      registry.Hubber
}

type systemParams struct {
	fx.In

	Hub      registry.Hubber
	DB       *sql.DB
	Gatherer prometheus.Gatherer
	Version  string `name:"version"`
}

var Module = fx.Module("http-handler",
	fx.Provide(
		func(p apiParams) *APIHandler {
			deps := Deps{
				Router:   p.Router,
				History:  p.Messages,
				Calls:    p.Calls,
				Tokens:   p.Tokens,
				Cache:    p.Push,
				Presence: p.Hub,
			}
			// a nil *Uploader must stay a nil interface
			if p.Uploader != nil {
				deps.Uploads = p.Uploader
			}
			return NewAPIHandler(deps, p.Logger.With("component", "http"))
		},
		func(p systemParams) *SystemHandler {
			return NewSystemHandler(p.Hub, p.DB, p.Gatherer, p.Version)
		},
	),
)
