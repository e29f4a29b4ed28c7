// Package quota resolves the data allowance of a subscription from its plan.
package quota

import (
	"context"

	"github.com/smallbiznis/telcoquota/internal/cache"
	"github.com/smallbiznis/telcoquota/internal/config"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ResolverParam struct {
	fx.In

	Log       *zap.Logger
	Directory subscriptiondomain.Directory
	Holder    *config.QuotaConfigHolder
	Cache     cache.PlanQuotaCache `optional:"true"`
}

// Resolver looks up the plan quota row and falls back to the configured
// default when the subscription has no plan or the plan has no row.
type Resolver struct {
	log       *zap.Logger
	directory subscriptiondomain.Directory
	holder    *config.QuotaConfigHolder
	cache     cache.PlanQuotaCache
}

func NewResolver(p ResolverParam) usagedomain.QuotaResolver {
	return &Resolver{
		log:       p.Log.Named("usage.quota"),
		directory: p.Directory,
		holder:    p.Holder,
		cache:     p.Cache,
	}
}

func (r *Resolver) Resolve(ctx context.Context, sub subscriptiondomain.Subscription) (usagedomain.Quota, error) {
	if sub.PlanID == nil || *sub.PlanID == 0 {
		return r.fallback(), nil
	}
	planID := *sub.PlanID

	if r.cache != nil {
		if quota, ok := r.cache.GetPlanQuota(planID); ok {
			return quota, nil
		}
	}

	plan, err := r.directory.FindPlanQuota(ctx, planID)
	if err != nil {
		return usagedomain.Quota{}, err
	}

	quota := r.fallback()
	if plan != nil {
		quota = usagedomain.Quota{DataMB: plan.DataQuotaMB, Unlimited: plan.Unlimited}
	} else {
		r.log.Debug("plan has no quota row, using default",
			zap.String("plan_id", planID.String()),
		)
	}

	if r.cache != nil {
		r.cache.SetPlanQuota(planID, quota)
	}
	return quota, nil
}

func (r *Resolver) fallback() usagedomain.Quota {
	return usagedomain.Quota{DataMB: r.holder.Get().DefaultDataQuotaMB}
}
