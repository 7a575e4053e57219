package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crushlink-backend/pkg/redis"
)

// Manager tracks processed event IDs per consumer using Redis SETNX with a TTL.
// Keys follow `cl:idempotency:evt:processed:<consumer>:<event_id>[:<part>]`;
// the optional part narrows the guard, e.g. to one recipient of an event.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks events as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed returns true if the event (narrowed by parts) was
// already processed, otherwise marks it processed.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID, parts ...string) (bool, error) {
	key, err := m.processedKey(consumer, eventID, parts)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete releases a mark so a failed attempt can be retried on redelivery.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID, parts ...string) error {
	key, err := m.processedKey(consumer, eventID, parts)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer string, eventID uuid.UUID, parts []string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	id := eventID.String()
	if len(parts) > 0 {
		id = id + ":" + strings.Join(parts, ":")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("evt:processed:%s", consumer), id), nil
}
