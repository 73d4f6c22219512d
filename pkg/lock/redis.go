package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "rfidtrace:reconcile:"

// RedisLocker serializes keys across processes via redislock leases.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker wraps a go-redis connection in a distributed key locker.
func NewRedisLocker(client *goredis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: redislock.New(client), ttl: ttl}
}

// Acquire obtains a lease on the key, retrying until the context expires.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	lease, err := r.client.Obtain(ctx, lockKeyPrefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if err != nil {
		if err == redislock.ErrNotObtained {
			return nil, fmt.Errorf("reconciliation key %q is busy: %w", key, err)
		}
		return nil, fmt.Errorf("obtaining lock for %q: %w", key, err)
	}

	release := func() {
		// Best effort: the lease TTL reclaims the key if release fails.
		_ = lease.Release(context.Background())
	}
	return release, nil
}
