package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Directory resolves subscriptions for the usage pipeline and the sweeps.
//
//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Directory interface {
	FindByID(ctx context.Context, id snowflake.ID) (Subscription, error)
	// FindActiveByReference returns the single active subscription bound to
	// the subscriber reference.
	FindActiveByReference(ctx context.Context, reference string) (Subscription, error)
	// SetStatus applies a conditional transition and reports whether a row changed.
	SetStatus(ctx context.Context, req StatusTransition) (bool, error)
	ListDue(ctx context.Context, query ListDueQuery) ([]Subscription, error)
	ExtendRenewal(ctx context.Context, query ExtendRenewalQuery) (bool, error)
	// FindPlanQuota returns nil when the plan has no quota row.
	FindPlanQuota(ctx context.Context, planID snowflake.ID) (*PlanQuota, error)
	SavePlanQuota(ctx context.Context, quota *PlanQuota) error
}

// Service is the operator-facing surface for subscriptions.
type Service interface {
	GetByID(ctx context.Context, id string) (Subscription, error)
	Suspend(ctx context.Context, req ChangeStatusRequest) (Subscription, error)
	Reactivate(ctx context.Context, req ChangeStatusRequest) (Subscription, error)
	Cancel(ctx context.Context, req ChangeStatusRequest) (Subscription, error)
	// SetPlanQuota creates or replaces a plan's allowance. Ingestion sees the
	// new value on its next delta.
	SetPlanQuota(ctx context.Context, req SetPlanQuotaRequest) (PlanQuota, error)
}

type ChangeStatusRequest struct {
	SubscriptionID string `json:"-"`
	Reason         string `json:"reason"`
}

type SetPlanQuotaRequest struct {
	PlanID      string `json:"-"`
	Name        string `json:"name"`
	DataQuotaMB int64  `json:"data_quota_mb"`
	Unlimited   bool   `json:"unlimited"`
}

const (
	ReasonUsageLimit    = "usage_limit"
	ReasonPaymentFailed = "payment_failed"
	ReasonAdmin         = "admin"
)

var (
	ErrInvalidSubscription    = errors.New("invalid_subscription")
	ErrInvalidReference       = errors.New("invalid_subscriber_reference")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrSubscriptionNotFound   = errors.New("subscription_not_found")
	ErrReferenceAlreadyActive = errors.New("subscriber_reference_already_active")
	ErrInvalidPlan            = errors.New("invalid_plan")
	ErrInvalidPlanQuota       = errors.New("invalid_plan_quota")
)
