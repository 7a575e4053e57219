package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/crushlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	client := dbtest.Client(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	aggregateID := uuid.New()
	ctx := context.Background()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCrushMatched,
			AggregateType: enums.AggregateCrush,
			AggregateID:   aggregateID,
			Actor:         &outbox.ActorRef{Source: outbox.ActorSourceSubmission, RequesterID: "4VP21CS099"},
			Data: payloads.CrushMatchedEvent{
				Parties: []payloads.MatchParty{{CrushID: uuid.New()}, {CrushID: aggregateID}},
			},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal([]byte(rows[0].Payload), &envelope))
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.Equal(t, 1, envelope.Version)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "4VP21CS099", envelope.Actor.RequesterID)
}

func TestEmitRollsBackWithTx(t *testing.T) {
	client := dbtest.Client(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	ctx := context.Background()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCrushMatched,
			AggregateType: enums.AggregateCrush,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"k": "v"},
		}); err != nil {
			return err
		}
		return errors.New("update failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	client := dbtest.Client(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	err := svc.Emit(context.Background(), client.DB(), outbox.DomainEvent{
		EventType:     enums.OutboxEventType("order_created"),
		AggregateType: enums.AggregateCrush,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
	require.Error(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := dbtest.Client(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, client.DB(), outbox.DomainEvent{
			EventType:     enums.EventCrushMatched,
			AggregateType: enums.AggregateCrush,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"i": i},
			OccurredAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	var fetched []models.OutboxEvent
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, fetched, 3)
	assert.True(t, !fetched[0].CreatedAt.After(fetched[1].CreatedAt))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, fetched[0].ID); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			if err := repo.MarkFailedTx(tx, fetched[1].ID, errors.New("pubsub down")); err != nil {
				return err
			}
		}
		return repo.MarkTerminalTx(tx, fetched[2].ID, errors.New("bad payload"))
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	assert.Empty(t, fetched, "published, exhausted, and terminal rows must not be fetched")

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestDLQRepositoryInsertAndFind(t *testing.T) {
	client := dbtest.Client(t)
	dlq := outbox.NewDLQRepository(client.DB())

	eventID := uuid.New()
	msg := strings.Repeat("x", 2048)
	require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventCrushMatched,
		AggregateType: enums.AggregateCrush,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		AttemptCount:  1,
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, found.ErrorReason)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, 1024)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
