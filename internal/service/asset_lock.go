package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AssetLocker serializes drift evaluation per mold.  The read-compare-write
// sequence in the detector is only correct when at most one evaluation runs
// per asset at a time; two devices scanning the same mold near-simultaneously
// would otherwise compare against the wrong historical point.
type AssetLocker interface {
	// Acquire takes the per-asset lock, waiting briefly if it is held.
	// It returns a release function and whether the lock was obtained.
	Acquire(ctx context.Context, moldID uint64) (release func(), ok bool)
}

// RedisAssetLocker implements AssetLocker with a SET NX key per mold.  The
// TTL bounds how long a crashed holder can block other evaluations.
type RedisAssetLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAssetLocker builds a locker over the given client.  A nil client
// yields a no-op locker: single-instance deployments without Redis degrade
// to unserialized evaluation rather than losing drift detection entirely.
func NewRedisAssetLocker(rdb *redis.Client) AssetLocker {
	if rdb == nil {
		return noopLocker{}
	}
	return &RedisAssetLocker{rdb: rdb, ttl: 10 * time.Second}
}

// Acquire polls SET NX a few times with a short sleep.  Contention here is
// rare (two scans of the same physical mold inside a second), so a bounded
// wait is preferred over queueing.
func (l *RedisAssetLocker) Acquire(ctx context.Context, moldID uint64) (func(), bool) {
	key := fmt.Sprintf("driftlock:mold:%d", moldID)
	for attempt := 0; attempt < 5; attempt++ {
		ok, err := l.rdb.SetNX(ctx, key, 1, l.ttl).Result()
		if err != nil {
			// Redis unavailable: skip serialization rather than fail the scan.
			return func() {}, true
		}
		if ok {
			return func() {
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				l.rdb.Del(cleanupCtx, key)
			}, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil, false
}

type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, moldID uint64) (func(), bool) {
	return func() {}, true
}
