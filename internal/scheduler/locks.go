package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	"go.uber.org/zap"
)

const leaseKeyPrefix = "telcoquota:scheduler:"

func leaseKey(job string) string {
	return leaseKeyPrefix + job
}

// acquireLease takes the redis lease for job so only one replica sweeps at a
// time. Without a locker, or when redis is unreachable, the job runs anyway:
// every sweep step is a conditional update and tolerates a concurrent runner.
// ok is false only when another replica holds the lease.
func (s *Scheduler) acquireLease(ctx context.Context, job string) (release func(), ok bool) {
	noop := func() {}
	if s.locker == nil {
		return noop, true
	}

	key := leaseKey(job)
	token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.logger(ctx).Warn("scheduler lease unavailable, running without it",
			zap.String("job", job),
			zap.Error(err),
		)
		return noop, true
	}
	if !acquired {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLeaseHeld)
		s.logger(ctx).Debug("scheduler lease held elsewhere", zap.String("job", job))
		return noop, false
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("scheduler lease release failed",
				zap.String("job", job),
				zap.Error(err),
			)
		}
	}, true
}
