package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	"github.com/smallbiznis/telcoquota/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type DirectoryParam struct {
	fx.In

	DB   *gorm.DB
	Repo subscriptiondomain.Repository
}

type Directory struct {
	db   *gorm.DB
	repo subscriptiondomain.Repository
}

func NewDirectory(p DirectoryParam) subscriptiondomain.Directory {
	return &Directory{db: p.DB, repo: p.Repo}
}

func (d *Directory) FindByID(ctx context.Context, id snowflake.ID) (subscriptiondomain.Subscription, error) {
	if id == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidSubscription
	}
	sub, err := d.repo.FindByID(ctx, d.db, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (d *Directory) FindActiveByReference(ctx context.Context, reference string) (subscriptiondomain.Subscription, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidReference
	}
	sub, err := d.repo.FindActiveByMSISDN(ctx, d.db, reference)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (d *Directory) SetStatus(ctx context.Context, req subscriptiondomain.StatusTransition) (bool, error) {
	if req.SubscriptionID == 0 {
		return false, subscriptiondomain.ErrInvalidSubscription
	}
	if len(req.From) == 0 || req.To == "" {
		return false, subscriptiondomain.ErrInvalidTransition
	}

	if req.To == subscriptiondomain.SubscriptionStatusActive {
		if err := d.ensureReferenceFree(ctx, req.SubscriptionID); err != nil {
			return false, err
		}
	}

	affected, err := d.repo.UpdateStatus(ctx, d.db, req)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, subscriptiondomain.ErrReferenceAlreadyActive
		}
		return false, err
	}
	return affected > 0, nil
}

// ensureReferenceFree rejects activating a subscription whose phone number is
// already bound to another active subscription. The partial unique index on
// postgres closes the remaining race.
func (d *Directory) ensureReferenceFree(ctx context.Context, id snowflake.ID) error {
	sub, err := d.FindByID(ctx, id)
	if err != nil {
		return err
	}
	active, err := d.repo.FindActiveByMSISDN(ctx, d.db, sub.MSISDN)
	if err != nil {
		return err
	}
	if active != nil && active.ID != id {
		return subscriptiondomain.ErrReferenceAlreadyActive
	}
	return nil
}

func (d *Directory) ListDue(ctx context.Context, query subscriptiondomain.ListDueQuery) ([]subscriptiondomain.Subscription, error) {
	if query.Limit <= 0 {
		query.Limit = 100
	}
	if query.Status == "" {
		query.Status = subscriptiondomain.SubscriptionStatusActive
	}
	return d.repo.ListDue(ctx, d.db, query)
}

func (d *Directory) ExtendRenewal(ctx context.Context, query subscriptiondomain.ExtendRenewalQuery) (bool, error) {
	if query.SubscriptionID == 0 {
		return false, subscriptiondomain.ErrInvalidSubscription
	}
	affected, err := d.repo.ExtendRenewal(ctx, d.db, query)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *Directory) FindPlanQuota(ctx context.Context, planID snowflake.ID) (*subscriptiondomain.PlanQuota, error) {
	if planID == 0 {
		return nil, nil
	}
	return d.repo.FindPlanQuota(ctx, d.db, planID)
}

func (d *Directory) SavePlanQuota(ctx context.Context, quota *subscriptiondomain.PlanQuota) error {
	if quota == nil || quota.PlanID == 0 {
		return subscriptiondomain.ErrInvalidPlan
	}
	return d.repo.UpsertPlanQuota(ctx, d.db, quota)
}
