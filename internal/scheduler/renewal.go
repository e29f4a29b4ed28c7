package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	"github.com/smallbiznis/telcoquota/internal/scheduler/guard"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"go.uber.org/zap"
)

// RenewalSweepJob processes every active subscription whose renew_at has
// passed. A failed payment suspends the subscription; otherwise renew_at moves
// forward and the counter for the current period is opened. Failures on one
// subscription are logged and counted, and the sweep moves on.
func (s *Scheduler) RenewalSweepJob(ctx context.Context) error {
	run := runFrom(ctx)
	schedMetrics := obsmetrics.Scheduler()
	now := s.clock.Now()

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		due, err := s.directory.ListDue(ctx, subscriptiondomain.ListDueQuery{
			Status:    subscriptiondomain.SubscriptionStatusActive,
			DueBefore: now,
			AfterID:   afterID,
			Limit:     s.cfg.BatchSize,
		})
		schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceDueSubscriptions, time.Since(start))
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		processed := 0
		for _, sub := range due {
			afterID = sub.ID
			if err := s.renewOne(ctx, sub, now); err != nil {
				s.itemFailed(ctx, JobRenewalSweep, sub.ID, err,
					zap.String("subscriber_reference", sub.MSISDN),
				)
				continue
			}
			processed++
		}
		run.addProcessed(processed)
		schedMetrics.AddBatchProcessed(JobRenewalSweep, obsmetrics.LockResourceDueSubscriptions, processed)

		if len(due) < s.cfg.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) renewOne(ctx context.Context, sub subscriptiondomain.Subscription, now time.Time) error {
	if err := guard.EnsureRenewable(sub, now); err != nil {
		return err
	}
	actor := authorization.SystemActor()
	log := s.logger(ctx).With(
		zap.String("subscription_id", sub.ID.String()),
		zap.String("subscriber_reference", sub.MSISDN),
	)

	if sub.PaymentStatus == subscriptiondomain.PaymentStatusFailed {
		if err := s.authz.Authorize(ctx, actor, authorization.ObjectSubscription, authorization.ActionSubscriptionSuspend); err != nil {
			return err
		}
		changed, err := s.dispatcher.SuspendForReason(ctx, sub, subscriptiondomain.ReasonPaymentFailed)
		if err != nil {
			return err
		}
		if changed {
			log.Info("subscription suspended for failed payment")
		}
		return nil
	}

	if err := s.authz.Authorize(ctx, actor, authorization.ObjectSubscription, authorization.ActionSubscriptionRenew); err != nil {
		return err
	}
	next, err := guard.NextRenewAt(sub.RenewAt, now, s.cfg.RenewalPeriodMonth)
	if err != nil {
		return err
	}
	extended, err := s.directory.ExtendRenewal(ctx, subscriptiondomain.ExtendRenewalQuery{
		SubscriptionID: sub.ID,
		DueBefore:      now,
		NextRenewAt:    next,
		At:             now,
	})
	if err != nil {
		return err
	}
	if !extended {
		obsmetrics.Scheduler().IncBatchDeferred(JobRenewalSweep, obsmetrics.SchedulerBatchDeferredReasonConcurrentWrite)
	}

	// Counters are per calendar month. The current one keeps receiving usage
	// until the month ends; the one holding the new renewal date is opened
	// ahead of it. Both calls are idempotent, so a run interrupted after the
	// extension still opens them.
	for _, period := range renewalPeriods(now, next) {
		if _, err := s.ledger.FindOrCreateCounter(ctx, sub.ID, period); err != nil {
			return err
		}
	}
	if extended {
		log.Info("subscription renewed", zap.Time("renew_at", next))
	}
	return nil
}

func renewalPeriods(now, next time.Time) []usagedomain.Period {
	current := usagedomain.PeriodOf(now)
	upcoming := usagedomain.PeriodOf(next)
	if upcoming == current {
		return []usagedomain.Period{current}
	}
	return []usagedomain.Period{current, upcoming}
}
