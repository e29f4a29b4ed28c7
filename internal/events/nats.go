package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/telcoquota/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrBrokerUnavailable = errors.New("event_broker_unavailable")

// NATSPublisher publishes each event on "<prefix>.<event name>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher returns nil when no broker URL is configured.
func NewNATSPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*NATSPublisher, error) {
	url := strings.TrimSpace(cfg.Events.NATSURL)
	if url == "" {
		return nil, nil
	}

	log = log.Named("events.nats")
	conn, err := nats.Connect(url,
		nats.Name(cfg.AppName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return conn.Drain()
		},
	})
	return &NATSPublisher{conn: conn, prefix: cfg.Events.Subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.conn == nil || !p.conn.IsConnected() {
		return ErrBrokerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(Subject(p.prefix, event.Name), body)
}

// Subject builds the broker subject for an event name.
func Subject(prefix, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
