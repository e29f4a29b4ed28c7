package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	"go.uber.org/zap"
)

// ReservationExpiryJob returns numbers reserved longer than the reservation
// TTL to the available pool.
func (s *Scheduler) ReservationExpiryJob(ctx context.Context) error {
	if err := s.authz.Authorize(ctx, authorization.SystemActor(), authorization.ObjectReservation, authorization.ActionReservationRelease); err != nil {
		return err
	}

	run := runFrom(ctx)
	schedMetrics := obsmetrics.Scheduler()
	cutoff := s.clock.Now().Add(-s.cfg.ReservationTTL)

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		stale, err := s.reservations.ListExpired(ctx, reservationdomain.ListExpiredQuery{
			ReservedBefore: cutoff,
			AfterID:        afterID,
			Limit:          s.cfg.BatchSize,
		})
		schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceStaleReservations, time.Since(start))
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}

		released := 0
		for _, row := range stale {
			afterID = row.ID
			ok, err := s.reservations.ReleaseExpired(ctx, row.ID, cutoff)
			if err != nil {
				s.itemFailed(ctx, JobReservationSweep, row.ID, err,
					zap.String("msisdn", row.MSISDN),
				)
				continue
			}
			if !ok {
				schedMetrics.IncBatchDeferred(JobReservationSweep, obsmetrics.SchedulerBatchDeferredReasonConcurrentWrite)
				continue
			}
			released++
			s.logger(ctx).Info("reservation expired",
				zap.String("reservation_id", row.ID.String()),
				zap.String("msisdn", row.MSISDN),
			)
		}
		run.addProcessed(released)
		schedMetrics.AddBatchProcessed(JobReservationSweep, obsmetrics.LockResourceStaleReservations, released)

		if len(stale) < s.cfg.BatchSize {
			return nil
		}
	}
}
