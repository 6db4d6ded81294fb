package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDB struct {
	failing atomic.Bool
}

func (f *fakeDB) PingContext(context.Context) error {
	if f.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startHealth(t *testing.T, db Pinger, interval time.Duration) (healthpb.HealthClient, func()) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewHealthServer("bufnet", db, interval, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	stop := func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("health server did not stop")
		}
	}
	return healthpb.NewHealthClient(conn), stop
}

func statusOf(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_ServingWhenDatabaseAnswers(t *testing.T) {
	client, stop := startHealth(t, &fakeDB{}, time.Hour)
	defer stop()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, statusOf(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, statusOf(t, client, ServiceName))
}

func TestHealth_FollowsDatabase(t *testing.T) {
	db := &fakeDB{}
	client, stop := startHealth(t, db, 10*time.Millisecond)
	defer stop()

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, statusOf(t, client, ""))

	db.failing.Store(true)
	assert.Eventually(t, func() bool {
		return statusOf(t, client, "") == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)

	db.failing.Store(false)
	assert.Eventually(t, func() bool {
		return statusOf(t, client, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewHealthServer("127.0.0.1:99999", &fakeDB{}, time.Hour, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, srv.Run(ctx))
}
