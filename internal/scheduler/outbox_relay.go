package scheduler

import (
	"context"

	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
)

const outboxResource = "domain_events"

// OutboxRelayJob forwards unpublished outbox events to the broker, or to the
// log when no broker is configured. It drains in batches and stops at the
// first delivery failure.
func (s *Scheduler) OutboxRelayJob(ctx context.Context) error {
	if s.outbox == nil {
		return nil
	}
	run := runFrom(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		relayed, err := s.outbox.Relay(ctx, s.sink, s.cfg.BatchSize)
		run.addProcessed(relayed)
		obsmetrics.Scheduler().AddBatchProcessed(JobOutboxRelay, outboxResource, relayed)
		if err != nil {
			return err
		}
		if relayed < s.cfg.BatchSize {
			return nil
		}
	}
}
