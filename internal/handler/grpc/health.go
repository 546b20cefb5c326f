package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service key reported next to the overall "" status.
const ServiceName = "im.realtime.v1"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter drives the standard gRPC health service from a database probe.
type HealthReporter struct {
	server   *health.Server
	db       Pinger
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(db Pinger, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		server:   health.NewServer(),
		db:       db,
		interval: interval,
		logger:   logger,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

func (r *HealthReporter) Server() *health.Server { return r.server }

// Check probes once and publishes the result.
func (r *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if r.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, r.interval/2)
		err := r.db.PingContext(pingCtx)
		cancel()
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			if r.last != st {
				r.logger.Warn("HEALTH_DATABASE_UNREACHABLE", "err", err)
			}
		}
	}

	if r.last != st {
		r.logger.Info("HEALTH_STATUS_CHANGED", "from", r.last.String(), "to", st.String())
		r.last = st
	}

	r.server.SetServingStatus("", st)
	r.server.SetServingStatus(ServiceName, st)
	return st
}

// Start runs an initial probe and then one per interval until Stop.
func (r *HealthReporter) Start() {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.Check(context.Background())

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.Check(context.Background())
			}
		}
	}()
}

// Stop halts probing and flips every service to NOT_SERVING.
func (r *HealthReporter) Stop() {
	if r.stop != nil {
		close(r.stop)
		<-r.done
		r.stop = nil
	}
	r.server.Shutdown()
}
