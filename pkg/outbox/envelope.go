package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies what produced the event: a live submission or the
// reconciliation sweep.
type ActorRef struct {
	Source      string `json:"source"`
	RequesterID string `json:"requesterId,omitempty"`
}

const (
	ActorSourceSubmission = "submission"
	ActorSourceSweep      = "sweep"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
