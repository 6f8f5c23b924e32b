// Package grpcserver exposes the standard gRPC health service so that orchestrators can probe
// the process and its database.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messenger-service/internal/observability"
)

// ServiceName is the health service entry reported alongside the overall status.
const ServiceName = "messenger.v1.Messenger"

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Server wraps a grpc.Server with a health registry.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

func New() *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &Server{grpc: srv, health: hs}
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("grpc server listening")
	return s.grpc.Serve(lis)
}

// Watch runs check every interval and flips the serving status accordingly. It returns when ctx
// is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration, check Checker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	serving := true
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		err := check(checkCtx)
		cancel()
		switch {
		case err != nil && serving:
			log.Warn().Err(err).Msg("health check failed")
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			log.Info().Msg("health check recovered")
			s.setStatus(healthpb.HealthCheckResponse_SERVING)
			serving = true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop marks the process as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
