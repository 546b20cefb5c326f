package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/infra/auth"
	httphandler "github.com/webitel/im-realtime-service/internal/handler/http"
	"github.com/webitel/im-realtime-service/internal/handler/ws"
	"go.uber.org/fx"
)

// NewRouter assembles the public HTTP surface: the websocket endpoint, the
// operational endpoints and the authenticated REST API.
func NewRouter(wsHandler http.Handler, system *httphandler.SystemHandler, api *httphandler.APIHandler, resolver *auth.Resolver, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Handle("/ws", wsHandler)
	system.Routes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		api.Routes(r, resolver)
	})

	return r
}

// requestLogger skips the websocket upgrade; sessions log their own lifecycle.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP_REQUEST",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func New(cfg config.HTTPConfig, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger.With("component", "http"),
	}
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http: listen %s: %w", s.srv.Addr, err)
	}

	s.logger.Info("HTTP_LISTENING", "addr", lis.Addr().String())
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVE_FAILED", "err", err)
		}
	}()
	return nil
}

// Stop stops accepting and waits for plain requests. Hijacked websocket
// connections are not tracked by net/http; the hub shutdown closes them.
func (s *Server) Stop(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}

var Module = fx.Module("http-server",
	fx.Provide(
		func(cfg *config.Config) *auth.Resolver { return auth.NewResolver(cfg.Auth) },
		func(wsh *ws.WSHandler, system *httphandler.SystemHandler, api *httphandler.APIHandler, resolver *auth.Resolver, logger *slog.Logger) chi.Router {
			return NewRouter(wsh, system, api, resolver, logger)
		},
		func(cfg *config.Config, r chi.Router, logger *slog.Logger) *Server {
			return New(cfg.HTTP, r, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
