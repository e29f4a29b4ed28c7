package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smallbiznis/telcoquota/internal/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DomainEvent is a row of the transactional outbox. ULID ids sort by creation time.
type DomainEvent struct {
	ID          string         `gorm:"primaryKey;type:varchar(26)"`
	Name        string         `gorm:"type:varchar(64);not null;index"`
	Payload     datatypes.JSON `gorm:"not null"`
	TraceID     string         `gorm:"type:varchar(32)"`
	Published   bool           `gorm:"not null;default:false;index"`
	PublishedAt *time.Time     `gorm:""`
	OccurredAt  time.Time      `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
}

// TableName sets the database table name.
func (DomainEvent) TableName() string { return "domain_events" }

// Outbox stores events in domain_events so they survive broker outages.
type Outbox struct {
	db *gorm.DB
}

// NewOutbox returns nil when the outbox is disabled.
func NewOutbox(cfg config.Config, db *gorm.DB) *Outbox {
	if !cfg.Events.Outbox {
		return nil
	}
	return &Outbox{db: db}
}

func (o *Outbox) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	row := DomainEvent{
		ID:         event.ID,
		Name:       event.Name,
		Payload:    datatypes.JSON(payload),
		TraceID:    event.TraceID,
		OccurredAt: event.OccurredAt,
		CreatedAt:  time.Now().UTC(),
	}
	return o.db.WithContext(ctx).Create(&row).Error
}

// Relay forwards up to limit unpublished events to sink in creation order and
// marks each as published. It stops at the first delivery failure so ordering
// is kept for the next run.
func (o *Outbox) Relay(ctx context.Context, sink Publisher, limit int) (int, error) {
	var rows []DomainEvent
	if err := o.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return 0, err
	}

	relayed := 0
	for _, row := range rows {
		var payload map[string]any
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return relayed, fmt.Errorf("decode outbox event %s: %w", row.ID, err)
		}
		event := Event{
			ID:         row.ID,
			Name:       row.Name,
			Payload:    payload,
			OccurredAt: row.OccurredAt,
			TraceID:    row.TraceID,
		}
		if err := sink.Publish(ctx, event); err != nil {
			return relayed, err
		}

		now := time.Now().UTC()
		if err := o.db.WithContext(ctx).
			Model(&DomainEvent{}).
			Where("id = ? AND published = ?", row.ID, false).
			Updates(map[string]any{"published": true, "published_at": now}).Error; err != nil {
			return relayed, err
		}
		relayed++
	}
	return relayed, nil
}
