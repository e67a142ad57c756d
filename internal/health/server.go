// Package health serves grpc.health.v1.Health for the kiosk. Service ""
// reports the process, StoreService reports session store connectivity.
package health

import (
	"context"
	"net"

	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StoreService is the health service name tracking the session store.
const StoreService = "qrkiosk.SessionStore"

type Server struct {
	address string
	logger  logging.Logger
	health  *health.Server
}

// New builds a health server for address. The store starts NOT_SERVING
// until SetStoreServing reports otherwise.
func New(address string, l logging.Logger) *Server {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(StoreService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		address: address,
		logger:  l.With("module", "health"),
		health:  h,
	}
}

// SetStoreServing updates StoreService. Watchers are notified.
func (s *Server) SetStoreServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(StoreService, st)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping health server...")
		// moves every service to NOT_SERVING so watchers see the shutdown
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting health server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
