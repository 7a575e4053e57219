package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrushStatusTransitions(t *testing.T) {
	assert.True(t, CrushStatusPending.CanTransitionTo(CrushStatusMatched))
	assert.False(t, CrushStatusMatched.CanTransitionTo(CrushStatusPending))
	assert.False(t, CrushStatusMatched.CanTransitionTo(CrushStatusMatched))
	assert.False(t, CrushStatusPending.CanTransitionTo(CrushStatusPending))
}

func TestParseCrushStatus(t *testing.T) {
	status, err := ParseCrushStatus("matched")
	require.NoError(t, err)
	assert.Equal(t, CrushStatusMatched, status)

	_, err = ParseCrushStatus("MATCHED")
	require.Error(t, err)
	assert.False(t, CrushStatus("expired").IsValid())
}

func TestParseOutboxTypes(t *testing.T) {
	eventType, err := ParseOutboxEventType("crush_matched")
	require.NoError(t, err)
	assert.Equal(t, EventCrushMatched, eventType)

	_, err = ParseOutboxEventType("order_created")
	require.Error(t, err)

	aggregate, err := ParseOutboxAggregateType("crush")
	require.NoError(t, err)
	assert.True(t, aggregate.IsValid())
	assert.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	assert.False(t, OutboxDLQErrorReason("unknown").IsValid())
}
