// Package grpc serves the standard gRPC health protocol for the share access
// service so orchestrators can probe it next to the HTTP API.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/showroom/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "showroom.ShareAccess"

const defaultProbeInterval = 10 * time.Second

// Checker reports whether the backing stores are reachable.
type Checker func(ctx context.Context) error

type HealthServer struct {
	address       string
	logger        logging.Logger
	check         Checker
	probeInterval time.Duration
	health        *health.Server
}

func NewHealthServer(a string, l logging.Logger, check Checker) *HealthServer {
	return &HealthServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		check:         check,
		probeInterval: defaultProbeInterval,
		health:        health.NewServer(),
	}
}

// probe sets the serving status from one run of the checker.
func (s *HealthServer) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		if err := s.check(ctx); err != nil {
			s.logger.Warn(ctx, "health probe failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *HealthServer) register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
}

func (s *HealthServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *HealthServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	s.register(srv)

	s.probe(ctx)

	go func() {
		ticker := time.NewTicker(s.probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
