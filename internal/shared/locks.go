package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained reports that another holder owns the critical section.
var ErrLockNotObtained = fmt.Errorf("%w: critical section busy", ErrConflict)

// Locker serialises critical sections across service instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// CashSessionLockKey builds redis keys for cash session critical sections.
func CashSessionLockKey(pointOfSaleID uuid.UUID) string {
	return fmt.Sprintf("ledger:pos:%s:session-lock", pointOfSaleID)
}

// RedisLocker is a Locker backed by redislock.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	logger  *slog.Logger
}

// NewRedisLocker wraps a redis client.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, retries: 5, logger: logger}
}

// Acquire obtains the lock for key. When Redis itself is unreachable the caller proceeds
// unlocked and relies on database constraints.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	if l == nil || l.client == nil {
		return func(context.Context) {}, nil
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		l.logger.Warn("redis lock unavailable; proceeding without lock", slog.String("key", key), slog.Any("error", err))
		return func(context.Context) {}, nil
	}
	return func(ctx context.Context) {
		if releaseErr := lock.Release(ctx); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release redis lock", slog.String("key", key), slog.Any("error", releaseErr))
		}
	}, nil
}

// NoopLocker never blocks.
type NoopLocker struct{}

// Acquire implements Locker.
func (NoopLocker) Acquire(context.Context, string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
