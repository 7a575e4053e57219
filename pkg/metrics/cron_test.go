package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "pending-match-sweep"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncSkipped(job)
	metrics.AddItems(job, 3)
	metrics.AddItems(job, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, result := range []string{"success", "failure", "skipped"} {
		got, err := fetchCounterValue(mfs, "cron_job_runs_total", "result", result)
		if err != nil {
			t.Fatalf("fetch %s: %v", result, err)
		}
		if got != 1 {
			t.Fatalf("expected %s=1, got %f", result, got)
		}
	}

	if got, err := fetchCounterValue(mfs, "cron_job_items_total", "job", job); err != nil {
		t.Fatalf("fetch items: %v", err)
	} else if got != 3 {
		t.Fatalf("expected items=3, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
