package events

import (
	"github.com/smallbiznis/telcoquota/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
	fx.Provide(NewNATSPublisher),
	fx.Provide(NewPublisher),
)

type PublisherParams struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Outbox *Outbox        `optional:"true"`
	NATS   *NATSPublisher `optional:"true"`
}

// NewPublisher prefers the outbox, whose relay job forwards to the broker.
// Without an outbox events go straight to the broker, and without either they
// are only logged. EVENTS_LOG_ENABLED adds the log next to the primary target.
func NewPublisher(p PublisherParams) Publisher {
	if p.Config.Events.Disabled {
		return Noop{}
	}

	var targets Fanout
	switch {
	case p.Outbox != nil:
		targets = append(targets, p.Outbox)
	case p.NATS != nil:
		targets = append(targets, p.NATS)
	}
	if p.Config.Events.Log || len(targets) == 0 {
		targets = append(targets, NewLogPublisher(p.Log))
	}

	if len(targets) == 1 {
		return targets[0]
	}
	return targets
}
