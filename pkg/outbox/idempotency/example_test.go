package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleStore map[string]bool

func (s exampleStore) Get(_ context.Context, key string) (string, error) {
	if s[key] {
		return "1", nil
	}
	return "", nil
}

func (s exampleStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s[key] {
		return false, nil
	}
	s[key] = true
	return true, nil
}

func (s exampleStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s, key)
	}
	return nil
}

func (s exampleStore) IdempotencyKey(scope, id string) string {
	return "cl:idempotency:" + scope + ":" + id
}

// Each party of a match is guarded separately, so a failed send for one
// party can be released and retried without re-mailing the other.
func ExampleManager_Delete() {
	ctx := context.Background()
	manager, _ := NewManager(exampleStore{}, 7*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for _, party := range []string{"asha", "ravi"} {
		seen, _ := manager.CheckAndMarkProcessed(ctx, "match-notifications", eventID, party)
		fmt.Println(party, "seen:", seen)
	}

	// ravi's send failed; release only that mark
	_ = manager.Delete(ctx, "match-notifications", eventID, "ravi")

	for _, party := range []string{"asha", "ravi"} {
		seen, _ := manager.CheckAndMarkProcessed(ctx, "match-notifications", eventID, party)
		fmt.Println(party, "seen:", seen)
	}
	// Output:
	// asha seen: false
	// ravi seen: false
	// asha seen: true
	// ravi seen: false
}
