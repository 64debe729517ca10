package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestHealthProbe(t *testing.T) {
	db := &fakePinger{}
	probe := newHealthProbe(db)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, probe.check(ctx))
	resp, err := probe.status.Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	db.err = errors.New("server selection timeout")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, probe.check(ctx))
	resp, err = probe.status.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	probe.stop()
	resp, err = probe.status.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestRecoverUnaryInterceptor(t *testing.T) {
	icpt := recoverUnaryInterceptor()
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}
