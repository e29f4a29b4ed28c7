package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/cache"
	"github.com/smallbiznis/telcoquota/internal/consequence"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log        *zap.Logger
	directory  subscriptiondomain.Directory
	dispatcher *consequence.Dispatcher
	quotas     cache.PlanQuotaCache
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	Directory  subscriptiondomain.Directory
	Dispatcher *consequence.Dispatcher
	Cache      cache.PlanQuotaCache `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		log:        p.Log.Named("subscription.service"),
		directory:  p.Directory,
		dispatcher: p.Dispatcher,
		quotas:     p.Cache,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (subscriptiondomain.Subscription, error) {
	subscriptionID, err := s.parseID(id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return s.directory.FindByID(ctx, subscriptionID)
}

// Suspend is idempotent: suspending a suspended subscription returns it unchanged.
func (s *Service) Suspend(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	return s.change(ctx, req, subscriptiondomain.SubscriptionStatusSuspended, s.dispatcher.SuspendForReason)
}

func (s *Service) Reactivate(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	return s.change(ctx, req, subscriptiondomain.SubscriptionStatusActive, s.dispatcher.Reactivate)
}

func (s *Service) Cancel(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	return s.change(ctx, req, subscriptiondomain.SubscriptionStatusCancelled, s.dispatcher.Cancel)
}

func (s *Service) SetPlanQuota(ctx context.Context, req subscriptiondomain.SetPlanQuotaRequest) (subscriptiondomain.PlanQuota, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil || planID == 0 {
		return subscriptiondomain.PlanQuota{}, subscriptiondomain.ErrInvalidPlan
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || req.DataQuotaMB < 0 || (req.DataQuotaMB == 0 && !req.Unlimited) {
		return subscriptiondomain.PlanQuota{}, subscriptiondomain.ErrInvalidPlanQuota
	}

	if err := s.directory.SavePlanQuota(ctx, &subscriptiondomain.PlanQuota{
		PlanID:      planID,
		Name:        name,
		DataQuotaMB: req.DataQuotaMB,
		Unlimited:   req.Unlimited,
	}); err != nil {
		return subscriptiondomain.PlanQuota{}, err
	}
	if s.quotas != nil {
		s.quotas.Invalidate(planID)
	}

	saved, err := s.directory.FindPlanQuota(ctx, planID)
	if err != nil {
		return subscriptiondomain.PlanQuota{}, err
	}
	if saved == nil {
		return subscriptiondomain.PlanQuota{}, subscriptiondomain.ErrInvalidPlan
	}

	s.log.Info("plan quota saved",
		zap.String("plan_id", planID.String()),
		zap.Int64("data_quota_mb", saved.DataQuotaMB),
		zap.Bool("unlimited", saved.Unlimited),
	)
	return *saved, nil
}

type transitionFunc func(ctx context.Context, sub subscriptiondomain.Subscription, reason string) (bool, error)

func (s *Service) change(
	ctx context.Context,
	req subscriptiondomain.ChangeStatusRequest,
	target subscriptiondomain.SubscriptionStatus,
	apply transitionFunc,
) (subscriptiondomain.Subscription, error) {
	sub, err := s.GetByID(ctx, req.SubscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub.Status == target {
		return sub, nil
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = subscriptiondomain.ReasonAdmin
	}

	changed, err := apply(ctx, sub, reason)
	if err != nil {
		if !errors.Is(err, subscriptiondomain.ErrReferenceAlreadyActive) {
			s.log.Error("subscription status change failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("target_status", string(target)),
				zap.Error(err),
			)
		}
		return subscriptiondomain.Subscription{}, err
	}

	updated, err := s.directory.FindByID(ctx, sub.ID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if !changed && updated.Status != target {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}
	return updated, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, subscriptiondomain.ErrInvalidSubscription
	}
	return id, nil
}
