package httphandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type StatsSource interface {
	Stats() model.HubStats
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves the unauthenticated operational endpoints.
type SystemHandler struct {
	stats    StatsSource
	db       Pinger
	gatherer prometheus.Gatherer
	version  string
}

func NewSystemHandler(stats StatsSource, db Pinger, gatherer prometheus.Gatherer, version string) *SystemHandler {
	return &SystemHandler{stats: stats, db: db, gatherer: gatherer, version: version}
}

func (h *SystemHandler) Routes(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Get("/stats", h.hubStats)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

func (h *SystemHandler) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": err.Error(),
				"version":  h.version,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

func (h *SystemHandler) hubStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Stats())
}
