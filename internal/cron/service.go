package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

const defaultInterval = 5 * time.Minute

type jobRecorder interface {
	ObserveDuration(job string, duration time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
	IncSkipped(job string)
	AddItems(job string, n int)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobRecorder
	Interval time.Duration
}

// Service executes registered cron jobs on a fixed cadence while holding
// the shared lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  jobRecorder
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	}), "cron service starting")

	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	jobs := s.registry.Jobs()
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		for _, job := range jobs {
			s.recordSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		// release even when the cycle was canceled mid-run
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithJob(ctx, name)
	start := time.Now()
	items, err := job.Run(jobCtx)
	duration := time.Since(start)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"items":       items,
	})

	if s.metrics != nil {
		s.metrics.ObserveDuration(name, duration)
		s.metrics.AddItems(name, items)
	}
	if errors.Is(err, context.Canceled) {
		s.logg.Warn(jobCtx, "job interrupted")
		return
	}
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(name)
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(name)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics != nil {
		s.metrics.IncSuccess(job)
	}
}

func (s *Service) recordFailure(job string) {
	if s.metrics != nil {
		s.metrics.IncFailure(job)
	}
}

func (s *Service) recordSkipped(job string) {
	if s.metrics != nil {
		s.metrics.IncSkipped(job)
	}
}
