package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) LockKey(name string) string { return "cl:lock:" + name }

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryRedis()
	first, err := NewRedisLock(store, "", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ttl := store.ttls["cl:lock:cron-worker"]; ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", ttl)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second acquire should fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.values["cl:lock:cron-worker"]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockReleaseAfterExpiryIsNoop(t *testing.T) {
	store := newMemoryRedis()
	lock, _ := NewRedisLock(store, "jobs", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	delete(store.values, "cl:lock:jobs")
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}
