package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const subscriptionColumns = `id, customer_id, msisdn, plan_id, status, payment_status, renew_at,
	suspended_at, cancelled_at, metadata, created_at, updated_at`

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	if subscription.PaymentStatus == "" {
		subscription.PaymentStatus = subscriptiondomain.PaymentStatusOK
	}
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindActiveByMSISDN(ctx context.Context, db *gorm.DB, msisdn string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE msisdn = ? AND status = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		msisdn,
		subscriptiondomain.SubscriptionStatusActive,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, req subscriptiondomain.StatusTransition) (int64, error) {
	updates := map[string]any{
		"status":     req.To,
		"updated_at": req.At,
	}
	switch req.To {
	case subscriptiondomain.SubscriptionStatusSuspended:
		updates["suspended_at"] = req.At
	case subscriptiondomain.SubscriptionStatusActive:
		updates["suspended_at"] = nil
	case subscriptiondomain.SubscriptionStatusCancelled:
		updates["cancelled_at"] = req.At
	}

	result := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ? AND status IN ?", req.SubscriptionID, statusValues(req.From)).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, query subscriptiondomain.ListDueQuery) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = ? AND renew_at <= ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		query.Status,
		query.DueBefore,
		query.AfterID,
		query.Limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) ExtendRenewal(ctx context.Context, db *gorm.DB, query subscriptiondomain.ExtendRenewalQuery) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET renew_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND renew_at <= ?`,
		query.NextRenewAt,
		query.At,
		query.SubscriptionID,
		subscriptiondomain.SubscriptionStatusActive,
		query.DueBefore,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) FindPlanQuota(ctx context.Context, db *gorm.DB, planID snowflake.ID) (*subscriptiondomain.PlanQuota, error) {
	var quota subscriptiondomain.PlanQuota
	err := db.WithContext(ctx).Raw(
		`SELECT plan_id, name, data_quota_mb, unlimited, created_at, updated_at
		 FROM plan_quotas WHERE plan_id = ?`,
		planID,
	).Scan(&quota).Error
	if err != nil {
		return nil, err
	}
	if quota.PlanID == 0 {
		return nil, nil
	}
	return &quota, nil
}

func (r *repo) UpsertPlanQuota(ctx context.Context, db *gorm.DB, quota *subscriptiondomain.PlanQuota) error {
	now := time.Now().UTC()
	if quota.CreatedAt.IsZero() {
		quota.CreatedAt = now
	}
	quota.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "data_quota_mb", "unlimited", "updated_at"}),
	}).Create(quota).Error
}

func statusValues(statuses []subscriptiondomain.SubscriptionStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
