// Package grpcserver exposes module liveness over the standard gRPC health
// protocol. Every registered module is a service name; the empty service
// name carries the overall system status.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/opsguard/opsguard/internal/health"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves grpc.health.v1.Health
type Server struct {
	addr   string
	log    zerolog.Logger
	health *grpchealth.Server

	mu    sync.Mutex
	known map[string]healthpb.HealthCheckResponse_ServingStatus
}

// New creates a health server listening on addr once Run is called
func New(addr string, log zerolog.Logger) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Server{
		addr:   addr,
		log:    log.With().Str("component", "grpc-health").Logger(),
		health: hs,
		known:  make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Health returns the health service implementation
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

// Sync publishes the module classifications and the overall status.
// A module is SERVING only while classified good.
func (s *Server) Sync(modules []types.ModuleView, overall string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range modules {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if m.Classification == types.QualityGood {
			status = healthpb.HealthCheckResponse_SERVING
		}
		if prev, ok := s.known[m.ModuleID]; ok && prev == status {
			continue
		}
		s.known[m.ModuleID] = status
		s.health.SetServingStatus(m.ModuleID, status)
		s.log.Debug().
			Str("module_id", m.ModuleID).
			Str("status", status.String()).
			Msg("Module serving status changed")
	}

	overallStatus := healthpb.HealthCheckResponse_SERVING
	if overall == health.StatusCritical {
		overallStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overallStatus)
}

// Run serves until ctx is cancelled, then stops gracefully
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)

	s.log.Info().Str("address", lis.Addr().String()).Msg("gRPC health server listening")

	// Closed after GracefulStop finishes so Serve only returns once the
	// server fully stopped.
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	s.log.Info().Msg("gRPC health server stopped")
	return nil
}
