package events

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log. It is the fallback when neither the
// outbox nor a broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	_ = ctx
	p.log.Info("domain event",
		zap.String("event_id", event.ID),
		zap.String("event_name", event.Name),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// Fanout publishes to every target and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
