package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

const (
	outboxRetentionJobName = "outbox-retention"
	outboxRetentionDays    = 30
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	// Retention is the number of days published rows are kept.
	Retention int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxRetentionRepo
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return int(deleted), nil
}
