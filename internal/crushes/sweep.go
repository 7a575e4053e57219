package crushes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
)

const (
	defaultSweepGrace = time.Minute
	defaultSweepBatch = 200
)

type pendingLister interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CrushRecord, error)
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Scanned int
	Matched int
	Stale   int
}

type SweeperParams struct {
	Store     pendingLister
	Resolver  matchResolver
	Updater   statusUpdater
	Notifier  MatchNotifier
	Logger    *logger.Logger
	Grace     time.Duration
	BatchSize int
}

// Sweeper re-resolves pending records that have waited longer than the grace
// period, closing matches whose second resolve never completed.
type Sweeper struct {
	store    pendingLister
	resolver matchResolver
	updater  statusUpdater
	notifier MatchNotifier
	logg     *logger.Logger
	grace    time.Duration
	batch    int
	now      func() time.Time
}

func NewSweeper(params SweeperParams) (*Sweeper, error) {
	switch {
	case params.Store == nil:
		return nil, errors.New("crush store required")
	case params.Resolver == nil:
		return nil, errors.New("match resolver required")
	case params.Updater == nil:
		return nil, errors.New("status updater required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultSweepGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &Sweeper{
		store:    params.Store,
		resolver: params.Resolver,
		updater:  params.Updater,
		notifier: params.Notifier,
		logg:     params.Logger,
		grace:    grace,
		batch:    batch,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sweep processes one batch of stale pending records. Per-record failures are
// collected and do not stop the batch.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	records, err := s.store.ListPendingBefore(ctx, s.now().Add(-s.grace), s.batch)
	if err != nil {
		return result, fmt.Errorf("list pending crushes: %w", err)
	}

	var errs error
	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, multierr.Append(errs, err)
		}
		result.Scanned++
		matched, stale, err := s.reconcile(ctx, &records[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", records[i].ID, err))
			continue
		}
		if matched {
			result.Matched++
		}
		if stale {
			result.Stale++
		}
	}
	return result, errs
}

func (s *Sweeper) reconcile(ctx context.Context, record *models.CrushRecord) (matched, stale bool, err error) {
	candidate, err := s.resolver.Resolve(ctx, record)
	if err != nil || candidate == nil {
		return false, false, err
	}
	pair, err := s.updater.MarkMatched(ctx, record.ID, candidate.ID, &outbox.ActorRef{Source: outbox.ActorSourceSweep})
	if err != nil {
		if errors.Is(err, ErrStaleMatch) {
			return false, true, nil
		}
		return false, false, err
	}
	logCtx := s.logg.WithFields(s.logg.WithCrushID(ctx, record.ID.String()), map[string]any{
		"counterpart_id": pair.Counterpart.ID.String(),
	})
	s.logg.Info(logCtx, "sweep closed pending match")
	if s.notifier != nil {
		s.notifier.NotifyMatch(ctx, *pair)
	}
	return true, false, nil
}
