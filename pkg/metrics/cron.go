package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records run outcomes for scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
}

const (
	cronResultSuccess = "success"
	cronResultFailure = "failure"
	cronResultSkipped = "skipped"
)

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions by result.",
	}, []string{"job", "result"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_items_total",
		Help: "Rows touched by cron jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, items)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		items:    items,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	c.incRun(job, cronResultSuccess)
}

func (c *CronJobMetrics) IncFailure(job string) {
	c.incRun(job, cronResultFailure)
}

// IncSkipped counts ticks where another worker held the lock.
func (c *CronJobMetrics) IncSkipped(job string) {
	c.incRun(job, cronResultSkipped)
}

// AddItems adds n processed rows to the named job's total.
func (c *CronJobMetrics) AddItems(job string, n int) {
	if c == nil || c.items == nil || n <= 0 {
		return
	}
	c.items.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func (c *CronJobMetrics) incRun(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
