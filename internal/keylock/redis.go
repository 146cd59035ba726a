package keylock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Default Redis lock settings.
const (
	DefaultLockTTL      = 10 * time.Second
	DefaultPollInterval = 25 * time.Millisecond
	DefaultKeyPrefix    = "lock:user:"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance that talks to the same
// Redis. A local Map in front keeps goroutines of one process from polling
// Redis against each other.
type RedisLocker struct {
	client       *redis.Client
	local        *Map
	ttl          time.Duration
	pollInterval time.Duration
	prefix       string
	logger       *zap.Logger
}

// RedisOption configures RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock survives if its holder dies.
func WithTTL(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.ttl = d
	}
}

// WithPollInterval sets the delay between acquisition attempts.
func WithPollInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.pollInterval = d
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(p string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = p
	}
}

// NewRedisLocker creates a distributed Locker backed by client.
func NewRedisLocker(client *redis.Client, logger *zap.Logger, opts ...RedisOption) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RedisLocker{
		client:       client,
		local:        NewMap(),
		ttl:          DefaultLockTTL,
		pollInterval: DefaultPollInterval,
		prefix:       DefaultKeyPrefix,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires key locally, then in Redis with SET NX PX.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		unlockLocal()
		return nil, err
	}
	redisKey := l.prefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("acquire redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("release redis lock", zap.String("key", key), zap.Error(err))
		}
		unlockLocal()
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var _ Locker = (*RedisLocker)(nil)
