package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/smallbiznis/telcoquota/internal/config"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
)

const (
	defaultPlanQuotaTTL  = time.Minute
	defaultPlanQuotaSize = 4096
)

// PlanQuotaCache stores resolved plan quotas for the ingestion hot path.
// Only plan allowances are held; subscription status is always read from the
// store. Entries expire after the TTL and are dropped when a plan quota is saved.
type PlanQuotaCache interface {
	GetPlanQuota(planID snowflake.ID) (usagedomain.Quota, bool)
	SetPlanQuota(planID snowflake.ID, quota usagedomain.Quota)
	Invalidate(planID snowflake.ID)
}

type planQuotaCache struct {
	quotas *expirable.LRU[snowflake.ID, usagedomain.Quota]
}

// NewPlanQuotaCache returns an in-memory cache sized for plan quotas. A zero
// TTL uses the default; a negative TTL disables caching.
func NewPlanQuotaCache(cfg config.Config) PlanQuotaCache {
	ttl := cfg.Usage.QuotaCacheTTL
	if ttl < 0 {
		return noopPlanQuotaCache{}
	}
	if ttl == 0 {
		ttl = defaultPlanQuotaTTL
	}
	return newPlanQuotaCache(defaultPlanQuotaSize, ttl)
}

func newPlanQuotaCache(size int, ttl time.Duration) *planQuotaCache {
	return &planQuotaCache{
		quotas: expirable.NewLRU[snowflake.ID, usagedomain.Quota](size, nil, ttl),
	}
}

func (c *planQuotaCache) GetPlanQuota(planID snowflake.ID) (usagedomain.Quota, bool) {
	if planID == 0 {
		return usagedomain.Quota{}, false
	}
	return c.quotas.Get(planID)
}

func (c *planQuotaCache) SetPlanQuota(planID snowflake.ID, quota usagedomain.Quota) {
	if planID == 0 {
		return
	}
	c.quotas.Add(planID, quota)
}

func (c *planQuotaCache) Invalidate(planID snowflake.ID) {
	c.quotas.Remove(planID)
}

type noopPlanQuotaCache struct{}

func (noopPlanQuotaCache) GetPlanQuota(snowflake.ID) (usagedomain.Quota, bool) {
	return usagedomain.Quota{}, false
}
func (noopPlanQuotaCache) SetPlanQuota(snowflake.ID, usagedomain.Quota) {}
func (noopPlanQuotaCache) Invalidate(snowflake.ID)                      {}
