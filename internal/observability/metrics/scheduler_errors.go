package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeAuthorization    = "authorization"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonForbidden            = "forbidden"
	SchedulerJobReasonUnknown              = "unknown"
)

// SchedulerErrorClass is the low-cardinality view of a sweep error used for
// log fields and metric labels.
type SchedulerErrorClass struct {
	Type      string
	Reason    string
	Retryable bool
}

// pgReasons maps postgres SQLSTATEs the sweeps can hit under contention.
var pgReasons = map[string]string{
	"55P03": SchedulerJobReasonDBLockTimeout,
	"40001": SchedulerJobReasonSerializationFailure,
	"23505": SchedulerJobReasonUniqueViolation,
}

var gormDBErrors = []error{
	gorm.ErrInvalidDB,
	gorm.ErrInvalidTransaction,
	gorm.ErrInvalidField,
	gorm.ErrInvalidData,
	gorm.ErrMissingWhereClause,
	gorm.ErrUnsupportedDriver,
	gorm.ErrRegistered,
	gorm.ErrInvalidValue,
	gorm.ErrNotImplemented,
	gorm.ErrDryRunModeUnsupported,
	gorm.ErrDuplicatedKey,
}

// ClassifySchedulerError sorts err into deadline, authorization, database
// or business-rule failures. Deadlines and database errors are retryable on
// the next tick.
func ClassifySchedulerError(err error) SchedulerErrorClass {
	switch {
	case err == nil:
		return SchedulerErrorClass{Type: SchedulerErrorTypeUnknown, Reason: SchedulerJobReasonUnknown}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerErrorClass{Type: SchedulerErrorTypeDeadlineExceeded, Reason: SchedulerJobReasonDeadlineExceeded, Retryable: true}
	case errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return SchedulerErrorClass{Type: SchedulerErrorTypeAuthorization, Reason: SchedulerJobReasonForbidden}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		reason, ok := pgReasons[pgErr.Code]
		if !ok {
			reason = SchedulerJobReasonUnknown
		}
		return SchedulerErrorClass{Type: SchedulerErrorTypeDB, Reason: reason, Retryable: true}
	}
	for _, target := range gormDBErrors {
		if errors.Is(err, target) {
			reason := SchedulerJobReasonUnknown
			if target == gorm.ErrDuplicatedKey {
				reason = SchedulerJobReasonUniqueViolation
			}
			return SchedulerErrorClass{Type: SchedulerErrorTypeDB, Reason: reason, Retryable: true}
		}
	}
	return SchedulerErrorClass{Type: SchedulerErrorTypeBusinessRule, Reason: SchedulerJobReasonUnknown}
}
