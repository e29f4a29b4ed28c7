// Package events publishes domain events produced by usage enforcement and
// subscription status changes.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

const (
	UsageThreshold50        = "usage.threshold_50"
	UsageThreshold80        = "usage.threshold_80"
	UsageLimitReached       = "usage.limit_reached"
	SubscriptionSuspended   = "subscription.suspended"
	SubscriptionReactivated = "subscription.reactivated"
	SubscriptionCancelled   = "subscription.cancelled"
)

// Event is the envelope every publisher receives.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
	TraceID    string         `json:"trace_id,omitempty"`
}

// Publisher delivers events. Callers treat delivery as best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewEvent builds an envelope with a fresh ULID and the active trace id, if any.
func NewEvent(ctx context.Context, name string, payload map[string]any, at time.Time) Event {
	event := Event{
		ID:         ulid.Make().String(),
		Name:       name,
		Payload:    payload,
		OccurredAt: at.UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}
	return event
}

// UsageThresholdPayload is carried by usage.threshold_* and usage.limit_reached.
type UsageThresholdPayload struct {
	SubscriptionID      string
	SubscriberReference string
	DataUsedMB          int64
	DataQuotaMB         int64
	Percentage          float64
	Threshold           int
}

func (p UsageThresholdPayload) ToMap() map[string]any {
	return map[string]any{
		"subscription_id":      p.SubscriptionID,
		"subscriber_reference": p.SubscriberReference,
		"data_used":            p.DataUsedMB,
		"data_quota":           p.DataQuotaMB,
		"percentage":           p.Percentage,
		"threshold":            p.Threshold,
	}
}

// SubscriptionStatusPayload is carried by subscription.* events.
type SubscriptionStatusPayload struct {
	SubscriptionID string
	Reason         string
	Timestamp      time.Time
}

func (p SubscriptionStatusPayload) ToMap() map[string]any {
	return map[string]any{
		"subscription_id": p.SubscriptionID,
		"reason":          p.Reason,
		"timestamp":       p.Timestamp.UTC().Format(time.RFC3339),
	}
}
