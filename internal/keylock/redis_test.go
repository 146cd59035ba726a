package keylock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupRedis starts a Redis container and returns a connected client.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, client.Ping(ctx).Err())

	return client, func() {
		client.Close()
		_ = container.Terminate(ctx)
	}
}

func TestRedisLocker_MutualExclusionAcrossInstances(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	// Two lockers simulate two service instances sharing Redis.
	l1 := NewRedisLocker(client, zap.NewNop(), WithPollInterval(5*time.Millisecond))
	l2 := NewRedisLocker(client, zap.NewNop(), WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		overlap bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		l := l1
		if i%2 == 1 {
			l = l2
		}
		wg.Add(1)
		go func(l *RedisLocker) {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "wallet")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}(l)
	}
	wg.Wait()

	assert.False(t, overlap, "two holders inside the critical section")

	exists, err := client.Exists(ctx, DefaultKeyPrefix+"wallet").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists, "lock key should be released")
}

func TestRedisLocker_ContextCancelWhileHeld(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	l1 := NewRedisLocker(client, zap.NewNop())
	l2 := NewRedisLocker(client, zap.NewNop(), WithPollInterval(5*time.Millisecond))

	unlock, err := l1.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = l2.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRedisLocker_NilLogger(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	l := NewRedisLocker(client, nil)
	require.NotNil(t, l.logger)
}

func TestRedisLocker_ReleaseFailureWithNilLogger(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	// A second client so closing it does not break cleanup.
	other := redis.NewClient(client.Options())
	l := NewRedisLocker(other, nil)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	require.NoError(t, other.Close())
	assert.NotPanics(t, unlock)
}
