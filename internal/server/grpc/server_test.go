package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakePinger struct {
	down atomic.Bool
}

func (p *fakePinger) PingContext(ctx context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startBufconn(t *testing.T, s *HealthServer) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func TestHealth_FollowsDatabase(t *testing.T) {
	p := &fakePinger{}
	s := NewHealthServer("", logging.NewNopLogger(), p, 20*time.Millisecond)
	client := startBufconn(t, s)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	require.Eventually(t, func() bool {
		return check(ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))

	p.down.Store(true)
	require.Eventually(t, func() bool {
		return check(ServiceName) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)
}

func TestProbe(t *testing.T) {
	p := &fakePinger{}
	s := NewHealthServer("", logging.NewNopLogger(), p, time.Second)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Probe(context.Background()))

	p.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Probe(context.Background()))
}
