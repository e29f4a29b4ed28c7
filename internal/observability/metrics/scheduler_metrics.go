package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SchedulerBatchDeferredReasonConcurrentWrite = "concurrent_write"
	SchedulerBatchDeferredReasonLeaseHeld       = "lease_held"
)

const (
	LockResourceDueSubscriptions  = "due_subscriptions"
	LockResourceStaleReservations = "stale_reservations"
)

// SchedulerMetrics tracks the renewal, reservation expiry and outbox sweeps.
// All methods are safe on a nil receiver.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	dbLockWait     *prometheus.HistogramVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the scheduler metrics on first use, labelled
// with the service and environment from cfg.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest lets a test register against a fresh registry.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := schedulerConstLabels(cfg)
	counter := func(name, help string, vars ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "telcoquota_scheduler_" + name,
			Help:        help,
			ConstLabels: labels,
		}, vars)
	}
	histogram := func(name, help string, buckets []float64, vars ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "telcoquota_scheduler_" + name,
			Help:        help,
			Buckets:     buckets,
			ConstLabels: labels,
		}, vars)
	}

	m := &SchedulerMetrics{
		jobRuns: counter("job_runs_total", "Scheduler job runs by name.", "job"),
		jobDuration: histogram("job_duration_seconds", "Scheduler job latency.",
			[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300}, "job"),
		jobTimeouts:    counter("job_timeouts_total", "Scheduler jobs that exceeded their timeout.", "job"),
		jobErrors:      counter("job_errors_total", "Scheduler job errors by low-cardinality reason.", "job", "reason"),
		batchProcessed: counter("batch_processed_total", "Rows processed by sweep jobs.", "job", "resource"),
		batchDeferred:  counter("batch_deferred_total", "Sweep rows or runs skipped, by reason.", "job", "reason"),
		dbLockWait: histogram("db_lock_wait_seconds", "Time spent selecting a sweep page.",
			[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}, "resource"),
	}
	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
		m.batchProcessed,
		m.batchDeferred,
		m.dbLockWait,
	)
	return m
}

func schedulerConstLabels(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "telcoquota"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

// IncJobError counts err under its classified reason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerError(err).Reason).Inc()
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

// ObserveDBLockWait records how long a sweep waited for its page query.
func (m *SchedulerMetrics) ObserveDBLockWait(resource string, d time.Duration) {
	if m != nil {
		m.dbLockWait.WithLabelValues(resource).Observe(d.Seconds())
	}
}
