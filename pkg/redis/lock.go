package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// ErrLockNotAcquired is returned when the lease could not be taken before ctx ended.
var ErrLockNotAcquired = errors.New("redis: lock not acquired")

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const (
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = 200 * time.Millisecond
)

// Locker is a lease-based mutex shared by every service instance.
type Locker struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	newToken func() string
}

// NewLocker returns a Locker whose keys are namespaced by prefix and expire after ttl.
func NewLocker(client redis.Cmdable, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		newToken: randomToken,
	}
}

// Lock blocks until the lease for key is held or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := l.newToken()
	wait := minPollInterval

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
		}
		if ok {
			return func() { l.release(fullKey, token) }, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}

		wait *= 2
		if wait > maxPollInterval {
			wait = maxPollInterval
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		// The lease expires on its own after ttl.
		logger.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
	}
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
