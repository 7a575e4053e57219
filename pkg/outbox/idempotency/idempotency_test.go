package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "cl:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "match-notifier", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}

	expectedKey := "cl:idempotency:evt:processed:match-notifier:" + eventID.String()
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_PerRecipientKey(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.New()
	crushID := uuid.New()
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "match-notifier", eventID, crushID.String()); err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	expectedKey := "cl:idempotency:evt:processed:match-notifier:" + eventID.String() + ":" + crushID.String()
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
}

func TestCheckAndMarkProcessed_AlreadyProcessed(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	manager, err := NewManager(store, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "match-notifier", uuid.New())
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected already processed, got false")
	}
}

func TestCheckAndMarkProcessed_Validation(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXResult: true}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "match-notifier", uuid.Nil); err == nil {
		t.Fatal("expected error for nil event id")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestCheckAndMarkProcessed_Error(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "match-notifier", uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteProcessed(t *testing.T) {
	store := &fakeStore{}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.New()
	if err := manager.Delete(context.Background(), "match-notifier", eventID, "party"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	expected := "cl:idempotency:evt:processed:match-notifier:" + eventID.String() + ":party"
	if store.lastDeleted != expected {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}
