package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/telcoquota/internal/clock"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	"go.uber.org/zap"
)

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "telcoquota",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "telcoquota",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "telcoquota_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "telcoquota",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "telcoquota_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobWrapsHardErrors(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	boom := errors.New("boom")

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "failing_job", 0, time.Second, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestIsJobEnabled(t *testing.T) {
	s := &Scheduler{}
	if !s.isJobEnabled(JobRenewalSweep) {
		t.Fatalf("empty list should enable every job")
	}

	s.cfg.EnabledJobs = []string{" Reservation_Expiry "}
	if !s.isJobEnabled(JobReservationSweep) {
		t.Fatalf("expected %s to be enabled", JobReservationSweep)
	}
	if s.isJobEnabled(JobRenewalSweep) {
		t.Fatalf("expected %s to be disabled", JobRenewalSweep)
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				if metric.GetCounter() == nil {
					return 0
				}
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(labels) == 0 {
		return true
	}
	found := make(map[string]string, len(metric.GetLabel()))
	for _, label := range metric.GetLabel() {
		found[label.GetName()] = label.GetValue()
	}
	for key, value := range labels {
		if found[key] != value {
			return false
		}
	}
	return true
}
