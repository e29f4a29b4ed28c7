package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey stores a hashed credential and the authorization role it acts as.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	KeyID      string       `gorm:"column:key_id;type:varchar(64);not null;uniqueIndex"`
	Name       string       `gorm:"type:varchar(128);not null"`
	Role       string       `gorm:"type:varchar(32);not null"`
	KeyHash    string       `gorm:"column:key_hash;type:varchar(64);not null;uniqueIndex"`
	IsActive   bool         `gorm:"column:is_active;not null"`
	CreatedAt  time.Time    `gorm:"not null"`
	UpdatedAt  time.Time    `gorm:"not null"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }
