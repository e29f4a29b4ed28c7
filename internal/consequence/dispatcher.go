// Package consequence applies threshold decisions: it suspends subscriptions
// and emits the matching events.
package consequence

import (
	"context"
	"time"

	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/events"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/internal/usage/threshold"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const emitTimeout = 5 * time.Second

var Module = fx.Module("consequence",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Directory subscriptiondomain.Directory
	Publisher events.Publisher
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher is the only place subscription status changes as a result of
// usage. Status is persisted first; events are published afterwards and a
// publish failure never undoes the status change.
type Dispatcher struct {
	log       *zap.Logger
	clock     clock.Clock
	directory subscriptiondomain.Directory
	publisher events.Publisher
	metrics   *obsmetrics.Metrics
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		log:       p.Log.Named("consequence.dispatcher"),
		clock:     p.Clock,
		directory: p.Directory,
		publisher: p.Publisher,
		metrics:   p.Metrics,
	}
}

// Target is the subscription and usage a decision was made for.
type Target struct {
	Subscription subscriptiondomain.Subscription
	DataUsedMB   int64
	Quota        usagedomain.Quota
}

type Outcome struct {
	Triggered bool
	Suspended bool
}

// Apply carries out a decision. Only a failed status write is returned.
func (d *Dispatcher) Apply(ctx context.Context, decision threshold.Decision, target Target) (Outcome, error) {
	switch decision.Action {
	case threshold.ActionNotify:
		name := decision.EventName()
		d.emit(ctx, name, thresholdPayload(decision, target))
		d.metrics.RecordThresholdEvent(ctx, name)
		return Outcome{Triggered: true}, nil

	case threshold.ActionSuspend:
		sub := target.Subscription
		changed, err := d.transition(ctx, sub, subscriptiondomain.SubscriptionStatusSuspended, subscriptiondomain.SubscriptionStatusActive)
		if err != nil {
			return Outcome{}, &usagedomain.PersistenceError{Op: "suspend subscription", Err: err}
		}
		if !changed {
			d.log.Debug("subscription already suspended",
				zap.String("subscription_id", sub.ID.String()),
			)
			return Outcome{}, nil
		}

		d.metrics.RecordSuspension(ctx, subscriptiondomain.ReasonUsageLimit)
		name := decision.EventName()
		d.emit(ctx, name, thresholdPayload(decision, target))
		d.metrics.RecordThresholdEvent(ctx, name)
		d.emitStatus(ctx, events.SubscriptionSuspended, sub, subscriptiondomain.ReasonUsageLimit)
		return Outcome{Triggered: true, Suspended: true}, nil

	default:
		return Outcome{}, nil
	}
}

// SuspendForReason suspends an active subscription outside the usage path,
// for example after a failed renewal payment.
func (d *Dispatcher) SuspendForReason(ctx context.Context, sub subscriptiondomain.Subscription, reason string) (bool, error) {
	changed, err := d.transition(ctx, sub, subscriptiondomain.SubscriptionStatusSuspended, subscriptiondomain.SubscriptionStatusActive)
	if err != nil || !changed {
		return false, err
	}
	d.metrics.RecordSuspension(ctx, reason)
	d.emitStatus(ctx, events.SubscriptionSuspended, sub, reason)
	return true, nil
}

func (d *Dispatcher) Reactivate(ctx context.Context, sub subscriptiondomain.Subscription, reason string) (bool, error) {
	changed, err := d.transition(ctx, sub, subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusSuspended)
	if err != nil || !changed {
		return false, err
	}
	d.emitStatus(ctx, events.SubscriptionReactivated, sub, reason)
	return true, nil
}

func (d *Dispatcher) Cancel(ctx context.Context, sub subscriptiondomain.Subscription, reason string) (bool, error) {
	changed, err := d.transition(ctx, sub, subscriptiondomain.SubscriptionStatusCancelled,
		subscriptiondomain.SubscriptionStatusPending,
		subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusSuspended,
		subscriptiondomain.SubscriptionStatusExpired,
	)
	if err != nil || !changed {
		return false, err
	}
	d.emitStatus(ctx, events.SubscriptionCancelled, sub, reason)
	return true, nil
}

func (d *Dispatcher) transition(ctx context.Context, sub subscriptiondomain.Subscription, to subscriptiondomain.SubscriptionStatus, from ...subscriptiondomain.SubscriptionStatus) (bool, error) {
	return d.directory.SetStatus(ctx, subscriptiondomain.StatusTransition{
		SubscriptionID: sub.ID,
		From:           from,
		To:             to,
		At:             d.clock.Now(),
	})
}

func (d *Dispatcher) emitStatus(ctx context.Context, name string, sub subscriptiondomain.Subscription, reason string) {
	d.emit(ctx, name, events.SubscriptionStatusPayload{
		SubscriptionID: sub.ID.String(),
		Reason:         reason,
		Timestamp:      d.clock.Now(),
	}.ToMap())
}

// emit publishes on a context detached from the caller's deadline, since the
// status write it follows has already committed.
func (d *Dispatcher) emit(ctx context.Context, name string, payload map[string]any) {
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	event := events.NewEvent(ctx, name, payload, d.clock.Now())
	if err := d.publisher.Publish(emitCtx, event); err != nil {
		emissionErr := &usagedomain.EmissionError{Event: name, Err: err}
		d.log.Warn("event emission failed",
			zap.String("event_id", event.ID),
			zap.String("event_name", name),
			zap.Error(emissionErr),
		)
		d.metrics.RecordEmissionFailure(ctx, name)
	}
}

func thresholdPayload(decision threshold.Decision, target Target) map[string]any {
	return events.UsageThresholdPayload{
		SubscriptionID:      target.Subscription.ID.String(),
		SubscriberReference: target.Subscription.MSISDN,
		DataUsedMB:          target.DataUsedMB,
		DataQuotaMB:         target.Quota.DataMB,
		Percentage:          decision.Percentage,
		Threshold:           decision.Threshold,
	}.ToMap()
}
