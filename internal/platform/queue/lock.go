package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if we still hold it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker hands out short Redis leases (SET NX PX) so that only one process
// performs a periodic job at a time.
type Locker struct {
	rdb *redis.Client
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	key   string
	value string
	rdb   *redis.Client
}

// TryAcquire returns (nil, nil) when another holder owns the key.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	value := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to attempt lock acquisition for %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{key: key, value: value, rdb: l.rdb}, nil
}

// Release reports whether the lease was still held when released.
func (le *Lease) Release(ctx context.Context) (bool, error) {
	if le == nil {
		return false, nil
	}
	deleted, err := releaseScript.Run(ctx, le.rdb, []string{le.key}, le.value).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", le.key, err)
	}
	return deleted == 1, nil
}
