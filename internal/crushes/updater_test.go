package crushes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/payloads"
)

func TestMarkMatchedTransitionsBothRecords(t *testing.T) {
	h := newHarness(t)
	x := h.seed(t, "4VP21CS045", "4VP21CS099", time.Time{})
	y := h.seed(t, "4VP21CS099", "4VP21CS045", time.Time{})

	pair, err := h.updater.MarkMatched(context.Background(), y.ID, x.ID, &outbox.ActorRef{Source: outbox.ActorSourceSubmission})
	require.NoError(t, err)
	require.Equal(t, y.ID, pair.Initiator.ID)
	require.Equal(t, x.ID, pair.Counterpart.ID)
	require.Equal(t, enums.CrushStatusMatched, pair.Initiator.Status)
	require.Equal(t, enums.CrushStatusMatched, pair.Counterpart.Status)

	for _, id := range []uuid.UUID{x.ID, y.ID} {
		stored := h.mustFind(t, id)
		require.Equal(t, enums.CrushStatusMatched, stored.Status)
		require.NotNil(t, stored.MatchedAt)
	}

	events := h.outboxEvents(t)
	require.Len(t, events, 1)
	require.Equal(t, y.ID, events[0].AggregateID)
	require.Equal(t, enums.AggregateCrush, events[0].AggregateType)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal([]byte(events[0].Payload), &env))
	require.Equal(t, outbox.ActorSourceSubmission, env.Actor.Source)
	var data payloads.CrushMatchedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Parties, 2)
	counterpart, ok := data.Counterpart(y.ID)
	require.True(t, ok)
	require.Equal(t, "name-4VP21CS045", counterpart.DisplayName)
	require.NotContains(t, string(events[0].Payload), "@college.edu")
}

func TestMarkMatchedTwiceIsStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	x := h.seed(t, "4VP21CS045", "4VP21CS099", time.Time{})
	y := h.seed(t, "4VP21CS099", "4VP21CS045", time.Time{})

	_, err := h.updater.MarkMatched(ctx, y.ID, x.ID, nil)
	require.NoError(t, err)
	firstMatchedAt := *h.mustFind(t, x.ID).MatchedAt

	pair, err := h.updater.MarkMatched(ctx, x.ID, y.ID, nil)
	require.Nil(t, pair)
	require.ErrorIs(t, err, ErrStaleMatch)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	require.Len(t, h.outboxEvents(t), 1)
	require.True(t, firstMatchedAt.Equal(*h.mustFind(t, x.ID).MatchedAt))
}

func TestMarkMatchedRollsBackWhenOneSideAlreadyMatched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	x := h.seed(t, "4VP21CS045", "4VP21CS099", time.Time{})
	y := h.seed(t, "4VP21CS099", "4VP21CS045", time.Time{})
	// y moved on without x; only the second conditional update can fail
	_, err := h.repo.MarkMatchedIfPending(ctx, y.ID, time.Now())
	require.NoError(t, err)

	_, err = h.updater.MarkMatched(ctx, x.ID, y.ID, nil)
	require.ErrorIs(t, err, ErrStaleMatch)
	require.Equal(t, enums.CrushStatusPending, h.mustFind(t, x.ID).Status)
	require.Empty(t, h.outboxEvents(t))
}

func TestMarkMatchedMissingRecordIsStale(t *testing.T) {
	h := newHarness(t)
	x := h.seed(t, "4VP21CS045", "4VP21CS099", time.Time{})

	_, err := h.updater.MarkMatched(context.Background(), x.ID, uuid.New(), nil)
	require.ErrorIs(t, err, ErrStaleMatch)
	require.Equal(t, enums.CrushStatusPending, h.mustFind(t, x.ID).Status)
}

func TestMarkMatchedRejectsNonReciprocalPair(t *testing.T) {
	h := newHarness(t)
	x := h.seed(t, "4VP21CS045", "4VP21CS099", time.Time{})
	z := h.seed(t, "4VP21CS100", "4VP21CS045", time.Time{})

	_, err := h.updater.MarkMatched(context.Background(), x.ID, z.ID, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.False(t, errors.Is(err, ErrStaleMatch))
	require.Equal(t, enums.CrushStatusPending, h.mustFind(t, x.ID).Status)
	require.Equal(t, enums.CrushStatusPending, h.mustFind(t, z.ID).Status)
}

func TestMarkMatchedValidatesIDs(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	_, err := h.updater.MarkMatched(context.Background(), id, id, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = h.updater.MarkMatched(context.Background(), uuid.Nil, id, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkMatchedPropagatesStoreFailure(t *testing.T) {
	h := newHarness(t)
	down := errors.New("connection refused")
	updater, err := NewStatusUpdater(h.repo, failingTx{err: down}, outbox.NewService(outbox.NewRepository(h.client.DB()), h.logg))
	require.NoError(t, err)

	_, err = updater.MarkMatched(context.Background(), uuid.New(), uuid.New(), nil)
	require.ErrorIs(t, err, down)
	require.False(t, errors.Is(err, ErrStaleMatch))
}
