package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultLockTTL      = 10 * time.Second
	defaultLockWait     = 3 * time.Second
	defaultLockInterval = 50 * time.Millisecond
)

// ErrLockTimeout is returned when another request kept the lock for the whole wait.
var ErrLockTimeout = errors.New("find-or-create lock wait exceeded")

var errLockHeld = errors.New("lock held by another request")

// ReleaseFunc frees a lock obtained from a Locker.
type ReleaseFunc func(ctx context.Context)

// Locker serializes find-or-create for one cart fingerprint.
type Locker interface {
	Lock(ctx context.Context, name string) (ReleaseFunc, error)
}

type lockStore interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
	LockKey(name string) string
}

// RedisLocker implements Locker with SET NX + TTL and an owner token.
type RedisLocker struct {
	store    lockStore
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(store lockStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait, interval: defaultLockInterval}, nil
}

// Lock polls until the lock is free, the wait elapses or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, name string) (ReleaseFunc, error) {
	key := l.store.LockKey(name)
	token := uuid.NewString()

	attempts := uint64(l.wait / l.interval)
	backoff := retry.WithMaxRetries(attempts, retry.NewConstant(l.interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.store.TryLock(ctx, key, token, l.ttl)
		if err != nil {
			return fmt.Errorf("setnx: %w", err)
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	if errors.Is(err, errLockHeld) {
		return nil, ErrLockTimeout
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		_ = l.store.Unlock(ctx, key, token)
	}, nil
}

// NopLocker is used when Redis is not configured; the unique dedup_key index
// still rejects exact duplicates.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (ReleaseFunc, error) {
	return func(context.Context) {}, nil
}
