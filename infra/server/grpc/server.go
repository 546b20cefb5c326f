package grpcsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/webitel/im-realtime-service/config"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server embeds *grpc.Server so handlers register on it directly.
type Server struct {
	*grpc.Server
	addr   string
	logger *slog.Logger
}

// InterceptorLogger adapts slog to the go-grpc-middleware logging interface.
func InterceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func New(cfg config.GRPCConfig, logger *slog.Logger) *Server {
	log := logger.With("component", "grpc")

	recoveryOpt := recovery.WithRecoveryHandler(func(p any) error {
		log.Error("GRPC_PANIC_RECOVERED", "panic", p)
		return status.Errorf(codes.Internal, "internal error")
	})
	loggingOpt := logging.WithLogOnEvents(logging.FinishCall)

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(InterceptorLogger(log), loggingOpt),
			recovery.UnaryServerInterceptor(recoveryOpt),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(InterceptorLogger(log), loggingOpt),
			recovery.StreamServerInterceptor(recoveryOpt),
		),
	)

	return &Server{Server: srv, addr: cfg.Addr, logger: log}
}

// Serve accepts on lis until Stop/GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("GRPC_LISTENING", "addr", lis.Addr().String())
	if err := s.Server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown drains in-flight calls, falling back to a hard stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}

var Module = fx.Module("grpc-server",
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) *Server {
		return New(cfg.GRPC, logger)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				lis, err := net.Listen("tcp", s.addr)
				if err != nil {
					return fmt.Errorf("grpc: listen %s: %w", s.addr, err)
				}
				go func() {
					if err := s.Serve(lis); err != nil {
						s.logger.Error("GRPC_SERVE_FAILED", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				s.Shutdown(ctx)
				return nil
			},
		})
	}),
)
