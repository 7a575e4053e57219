package crushes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// MatchedPair is the committed result of a paired transition. Initiator is
// the record whose resolve drove the match.
type MatchedPair struct {
	Initiator   models.CrushRecord
	Counterpart models.CrushRecord
	MatchedAt   time.Time
}

// Parties returns both records, initiator first.
func (p MatchedPair) Parties() []models.CrushRecord {
	return []models.CrushRecord{p.Initiator, p.Counterpart}
}

// StatusUpdater performs the pending -> matched transition for a reciprocal
// pair. Both conditional updates and the match event commit in one
// transaction, so a late or duplicate attempt changes nothing.
type StatusUpdater struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

func NewStatusUpdater(repo *Repository, tx txRunner, outbox outboxPublisher) (*StatusUpdater, error) {
	if repo == nil {
		return nil, errors.New("crush repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	return &StatusUpdater{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// MarkMatched transitions the initiator record and its counterpart to
// matched. It returns an error wrapping ErrStaleMatch when either record is
// missing or already matched; in that case nothing was written.
func (u *StatusUpdater) MarkMatched(ctx context.Context, initiatorID, counterpartID uuid.UUID, actor *outbox.ActorRef) (*MatchedPair, error) {
	if initiatorID == uuid.Nil || counterpartID == uuid.Nil || initiatorID == counterpartID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "two distinct crush ids required")
	}

	var pair *MatchedPair
	err := u.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := u.repo.WithTx(tx)
		initiator, err := repo.FindByID(ctx, initiatorID)
		if err != nil {
			return err
		}
		counterpart, err := repo.FindByID(ctx, counterpartID)
		if err != nil {
			return err
		}
		if initiator == nil || counterpart == nil {
			return ErrStaleMatch
		}
		if !initiator.IsReciprocalOf(*counterpart) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "crush records are not reciprocal")
		}

		at := u.now()
		// row locks are always taken in requester id order
		first, second := initiator, counterpart
		if second.RequesterID < first.RequesterID {
			first, second = second, first
		}
		for _, rec := range []*models.CrushRecord{first, second} {
			updated, err := repo.MarkMatchedIfPending(ctx, rec.ID, at)
			if err != nil {
				return err
			}
			if !updated {
				return ErrStaleMatch
			}
			rec.Status = enums.CrushStatusMatched
			rec.MatchedAt = &at
		}

		if err := u.outbox.Emit(ctx, tx, matchedEvent(*initiator, *counterpart, at, actor)); err != nil {
			return fmt.Errorf("emit match event: %w", err)
		}
		pair = &MatchedPair{Initiator: *initiator, Counterpart: *counterpart, MatchedAt: at}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleMatch) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrStaleMatch, "crush pair is no longer pending")
		}
		return nil, err
	}
	return pair, nil
}

func matchedEvent(initiator, counterpart models.CrushRecord, at time.Time, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventCrushMatched,
		AggregateType: enums.AggregateCrush,
		AggregateID:   initiator.ID,
		Actor:         actor,
		OccurredAt:    at,
		Data: payloads.CrushMatchedEvent{
			Parties: []payloads.MatchParty{
				{CrushID: initiator.ID, RequesterID: initiator.RequesterID, DisplayName: initiator.RequesterDisplayName},
				{CrushID: counterpart.ID, RequesterID: counterpart.RequesterID, DisplayName: counterpart.RequesterDisplayName},
			},
			MatchedAt: at,
		},
	}
}
