package payloads

import (
	"time"

	"github.com/google/uuid"
)

// MatchParty is one side of a committed match. Contact addresses are not
// carried on the bus; consumers load them from the crush record.
type MatchParty struct {
	CrushID     uuid.UUID `json:"crush_id"`
	RequesterID string    `json:"requester_id"`
	DisplayName string    `json:"display_name"`
}

// CrushMatchedEvent is emitted once per successful paired transition.
type CrushMatchedEvent struct {
	Parties   []MatchParty `json:"parties"`
	MatchedAt time.Time    `json:"matched_at"`
}

// Counterpart returns the party opposite to crushID.
func (e CrushMatchedEvent) Counterpart(crushID uuid.UUID) (MatchParty, bool) {
	if len(e.Parties) != 2 {
		return MatchParty{}, false
	}
	switch crushID {
	case e.Parties[0].CrushID:
		return e.Parties[1], true
	case e.Parties[1].CrushID:
		return e.Parties[0], true
	}
	return MatchParty{}, false
}
