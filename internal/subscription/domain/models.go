// Package domain contains persistence models for subscriptions and plan quotas.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// PaymentStatus is the outcome of the last renewal charge.
type PaymentStatus string

const (
	PaymentStatusOK     PaymentStatus = "ok"
	PaymentStatusFailed PaymentStatus = "failed"
)

// Subscription links a customer and a phone number to a plan.
// MSISDN is the subscriber reference usage feeds are keyed by.
type Subscription struct {
	ID            snowflake.ID       `gorm:"primaryKey"`
	CustomerID    snowflake.ID       `gorm:"not null;index"`
	MSISDN        string             `gorm:"column:msisdn;type:varchar(32);not null;index"`
	PlanID        *snowflake.ID      `gorm:"index"`
	Status        SubscriptionStatus `gorm:"type:varchar(16);not null;index"`
	PaymentStatus PaymentStatus      `gorm:"type:varchar(16);not null"`
	RenewAt       time.Time          `gorm:"not null;index"`
	SuspendedAt   *time.Time         `gorm:""`
	CancelledAt   *time.Time         `gorm:""`
	Metadata      datatypes.JSONMap  `gorm:""`
	CreatedAt     time.Time          `gorm:"not null"`
	UpdatedAt     time.Time          `gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the subscription may accumulate usage.
func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// PlanQuota is the monthly data allowance of a plan.
type PlanQuota struct {
	PlanID      snowflake.ID `gorm:"primaryKey"`
	Name        string       `gorm:"type:varchar(128);not null"`
	DataQuotaMB int64        `gorm:"column:data_quota_mb;not null"`
	Unlimited   bool         `gorm:"not null;default:false"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (PlanQuota) TableName() string { return "plan_quotas" }
