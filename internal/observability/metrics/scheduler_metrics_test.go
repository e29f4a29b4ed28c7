package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want SchedulerErrorClass
	}{
		{
			name: "deadline",
			err:  fmt.Errorf("renewal_sweep: %w", context.DeadlineExceeded),
			want: SchedulerErrorClass{Type: SchedulerErrorTypeDeadlineExceeded, Reason: SchedulerJobReasonDeadlineExceeded, Retryable: true},
		},
		{
			name: "forbidden",
			err:  authorization.ErrForbidden,
			want: SchedulerErrorClass{Type: SchedulerErrorTypeAuthorization, Reason: SchedulerJobReasonForbidden},
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerErrorClass{Type: SchedulerErrorTypeDB, Reason: SchedulerJobReasonDBLockTimeout, Retryable: true},
		},
		{
			name: "serialization_failure",
			err:  fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}),
			want: SchedulerErrorClass{Type: SchedulerErrorTypeDB, Reason: SchedulerJobReasonSerializationFailure, Retryable: true},
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerErrorClass{Type: SchedulerErrorTypeDB, Reason: SchedulerJobReasonUniqueViolation, Retryable: true},
		},
		{
			name: "not_found_is_business_rule",
			err:  gorm.ErrRecordNotFound,
			want: SchedulerErrorClass{Type: SchedulerErrorTypeBusinessRule, Reason: SchedulerJobReasonUnknown},
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerErrorClass{Type: SchedulerErrorTypeBusinessRule, Reason: SchedulerJobReasonUnknown},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerError(tc.err))
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "telcoquota",
		Environment: "test",
	})

	metrics.AddBatchProcessed("renewal_sweep", LockResourceDueSubscriptions, 3)
	metrics.AddBatchProcessed("renewal_sweep", LockResourceDueSubscriptions, 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("renewal_sweep", LockResourceDueSubscriptions))
	assert.Equal(t, float64(3), got)
}

func TestIncJobErrorUsesReason(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.IncJobError("reservation_expiry", context.DeadlineExceeded)
	metrics.IncJobError("reservation_expiry", nil)

	got := testutil.ToFloat64(metrics.jobErrors.WithLabelValues("reservation_expiry", SchedulerJobReasonDeadlineExceeded))
	assert.Equal(t, float64(1), got)
}

func TestNilSchedulerMetricsAreNoops(t *testing.T) {
	var m *SchedulerMetrics
	assert.NotPanics(t, func() {
		m.IncJobRun("outbox_relay")
		m.IncJobError("outbox_relay", errors.New("boom"))
		m.IncBatchDeferred("outbox_relay", SchedulerBatchDeferredReasonLeaseHeld)
		m.ObserveDBLockWait(LockResourceStaleReservations, 0)
	})
}
