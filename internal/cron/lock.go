package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/crushlink-backend/pkg/instance"
)

const (
	defaultLockName = "cron-worker"
	defaultLockTTL  = 10 * time.Minute
)

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// RedisLock implements Lock using SETNX with a TTL so a crashed holder
// cannot block later cycles forever.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client redisStore, name string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if name == "" {
		name = defaultLockName
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: client.LockKey(name), ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only while this holder still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	defer func() { l.owner = "" }()
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
