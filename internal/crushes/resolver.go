package crushes

import (
	"context"
	"errors"

	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

type reciprocalFinder interface {
	FindReciprocalPending(ctx context.Context, record models.CrushRecord) ([]models.CrushRecord, error)
}

type anomalyRecorder interface {
	IncResolveAnomaly()
}

// Resolver looks up the reciprocal pending record for a freshly inserted
// submission. It never mutates the store.
type Resolver struct {
	repo    reciprocalFinder
	logg    *logger.Logger
	metrics anomalyRecorder
}

// NewResolver builds a resolver. metrics may be nil.
func NewResolver(repo reciprocalFinder, logg *logger.Logger, metrics anomalyRecorder) (*Resolver, error) {
	if repo == nil {
		return nil, errors.New("crush repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Resolver{repo: repo, logg: logg, metrics: metrics}, nil
}

// Resolve returns the reciprocal pending record for record, or nil when the
// counterpart has not submitted yet. record must already be committed.
// More than one candidate breaks the one-pending-per-requester rule; the
// earliest is chosen and the fault is logged.
func (r *Resolver) Resolve(ctx context.Context, record *models.CrushRecord) (*models.CrushRecord, error) {
	if record == nil {
		return nil, errors.New("record required")
	}
	candidates, err := r.repo.FindReciprocalPending(ctx, *record)
	if err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return &candidates[0], nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID.String())
	}
	logCtx := r.logg.WithFields(r.logg.WithCrushID(ctx, record.ID.String()), map[string]any{
		"candidate_ids":   ids,
		"candidate_count": len(candidates),
		"chosen_id":       candidates[0].ID.String(),
	})
	r.logg.Warn(logCtx, "multiple reciprocal pending crushes found")
	if r.metrics != nil {
		r.metrics.IncResolveAnomaly()
	}
	return &candidates[0], nil
}
