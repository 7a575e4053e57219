package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

const pendingSweepJobName = "pending-match-sweep"

type pendingSweeper interface {
	Sweep(ctx context.Context) (crushes.SweepResult, error)
}

type PendingSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper pendingSweeper
}

// NewPendingSweepJob wraps the reconciliation sweep. Per-record failures are
// reported but the matches closed in the same pass still count.
func NewPendingSweepJob(params PendingSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &pendingSweepJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type pendingSweepJob struct {
	logg    *logger.Logger
	sweeper pendingSweeper
}

func (j *pendingSweepJob) Name() string { return pendingSweepJobName }

func (j *pendingSweepJob) Run(ctx context.Context) (int, error) {
	result, err := j.sweeper.Sweep(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"matched": result.Matched,
		"stale":   result.Stale,
	})
	if err != nil {
		return result.Matched, fmt.Errorf("pending sweep: %w", err)
	}
	if result.Scanned > 0 {
		j.logg.Info(logCtx, "pending sweep complete")
	}
	return result.Matched, nil
}
