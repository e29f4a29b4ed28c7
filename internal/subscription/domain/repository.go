package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindActiveByMSISDN(ctx context.Context, db *gorm.DB, msisdn string) (*Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, req StatusTransition) (int64, error)
	ListDue(ctx context.Context, db *gorm.DB, query ListDueQuery) ([]Subscription, error)
	ExtendRenewal(ctx context.Context, db *gorm.DB, query ExtendRenewalQuery) (int64, error)
	FindPlanQuota(ctx context.Context, db *gorm.DB, planID snowflake.ID) (*PlanQuota, error)
	UpsertPlanQuota(ctx context.Context, db *gorm.DB, quota *PlanQuota) error
}

// StatusTransition moves a subscription to To only while its status is one of From.
type StatusTransition struct {
	SubscriptionID snowflake.ID
	From           []SubscriptionStatus
	To             SubscriptionStatus
	At             time.Time
}

// ListDueQuery pages through subscriptions in keyset order of id.
type ListDueQuery struct {
	Status    SubscriptionStatus
	DueBefore time.Time
	AfterID   snowflake.ID
	Limit     int
}

// ExtendRenewalQuery only applies while renew_at is still due, so two sweeps
// racing on the same row extend it once.
type ExtendRenewalQuery struct {
	SubscriptionID snowflake.ID
	DueBefore      time.Time
	NextRenewAt    time.Time
	At             time.Time
}
