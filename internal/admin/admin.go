// Package admin exposes the lobby's operational gRPC endpoint. It serves the
// standard grpc.health.v1 service so load balancers and orchestrators can
// probe the process.
package admin

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cory-johannsen/lobby/internal/config"
)

// LobbyService is the health service name reported alongside the overall
// ("") status.
const LobbyService = "lobby.Lobby"

// Server is the admin gRPC server.
type Server struct {
	cfg    config.AdminConfig
	logger *zap.Logger
	health *health.Server
	grpc   *grpc.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates an admin server. Health starts as NOT_SERVING until
// MarkServing is called.
//
// Precondition: logger must be non-nil.
func NewServer(cfg config.AdminConfig, logger *zap.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(LobbyService, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{
		cfg:    cfg,
		logger: logger,
		health: hs,
		grpc:   gs,
	}
}

// MarkServing reports the lobby as SERVING.
func (s *Server) MarkServing() {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// MarkNotServing reports the lobby as NOT_SERVING. It is called when
// shutdown begins so probes fail before connections are dropped.
func (s *Server) MarkNotServing() {
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(LobbyService, st)
	s.logger.Info("health status changed", zap.Stringer("status", st))
}

// Serve listens on the configured address and serves until Stop.
//
// Postcondition: Returns nil after Stop, or the listen/serve error.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener until Stop.
func (s *Server) ServeListener(lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("admin grpc server listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serving admin grpc: %w", err)
	}
	return nil
}

// Stop marks the lobby NOT_SERVING and gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info("admin grpc server stopped")
}

// Addr returns the listening address, or empty string before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
