package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/config"
	pkglogger "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Server struct {
	config *config.Config
	logger *zap.Logger
	server *grpc.Server
	health *health.Server
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	server := grpc.NewServer(
		grpc.UnaryInterceptor(pkglogger.NewGrpcUnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(pkglogger.NewGrpcStreamServerInterceptor(logger)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(cfg.Service.Name, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		config: cfg,
		logger: logger,
		server: server,
		health: healthServer,
	}
}

// Start blocks serving on the configured address
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.GRPC.Host, s.config.Server.GRPC.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Starting gRPC server", zap.String("address", addr))
	return s.Serve(listener)
}

// Serve accepts connections on an existing listener
func (s *Server) Serve(listener net.Listener) error {
	return s.server.Serve(listener)
}

// SetServing flips the health status reported for the whole server and the service
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.config.Service.Name, status)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
