package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	pingTimeout  = 3 * time.Second
	pingInterval = 15 * time.Second

	// healthService is the name probes query besides the overall "" status.
	healthService = "wildwelcome.api"
)

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health check: database unreachable")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "unhealthy",
			"database": "disconnected",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "healthy",
		"database": "connected",
	})
}

// healthProbe serves the standard gRPC health service for orchestrators and
// keeps it in step with database reachability.
type healthProbe struct {
	db     pinger
	status *health.Server
	grpc   *grpc.Server
}

func newHealthProbe(db pinger) *healthProbe {
	hs := health.NewServer()
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoverUnaryInterceptor(), logUnaryInterceptor()),
		grpc.ChainStreamInterceptor(recoverStreamInterceptor()),
	)
	healthpb.RegisterHealthServer(gs, hs)
	return &healthProbe{db: db, status: hs, grpc: gs}
}

// check pings the database once and publishes the result.
func (p *healthProbe) check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := p.db.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health probe: database unreachable")
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	p.status.SetServingStatus("", st)
	p.status.SetServingStatus(healthService, st)
	return st
}

// watch re-checks the database every interval until ctx is done.
func (p *healthProbe) watch(ctx context.Context, interval time.Duration) {
	p.check(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.check(ctx)
		}
	}
}

// stop marks the service as going away and drains in-flight probes.
func (p *healthProbe) stop() {
	p.status.Shutdown()
	p.grpc.GracefulStop()
}
