//go:build integration

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return NewRedisStore(rdb)
}

func TestRedisStore_ReserveLifecycle(t *testing.T) {
	runReserveLifecycle(t, newRedisStore(t))
}

func TestRedisStore_RecordsExpire(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	fp := Fingerprint([]byte("a"))

	res, err := store.Reserve(ctx, "key-2", fp, time.Now(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	require.Eventually(t, func() bool {
		res, err := store.Reserve(ctx, "key-2", Fingerprint([]byte("b")), time.Now(), time.Second)
		return err == nil && res.State == ReservationStateNew
	}, 5*time.Second, 100*time.Millisecond, "expired records are replaced")
}
