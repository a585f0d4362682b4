package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 2 * time.Hour

// Lock coordinates exclusive maintenance runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// tokenLocker is the subset of pkg/redis.Client the lock needs.
type tokenLocker interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// RedisLock keeps maintenance cycles exclusive across worker replicas.
type RedisLock struct {
	client tokenLocker
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client tokenLocker, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.TryLock(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("try lock: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	if err := l.client.Unlock(ctx, l.key, token); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}

// LocalLock is used when Redis is not configured; it only guards
// overlapping cycles within one process.
type LocalLock struct {
	held atomic.Bool
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.held.Store(false)
	return nil
}
