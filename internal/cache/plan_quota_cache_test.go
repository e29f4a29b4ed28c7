package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/config"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/stretchr/testify/require"
)

func TestPlanQuotaCacheRoundTrip(t *testing.T) {
	c := newPlanQuotaCache(16, time.Minute)
	planID := snowflake.ID(7)

	_, ok := c.GetPlanQuota(planID)
	require.False(t, ok)

	c.SetPlanQuota(planID, usagedomain.Quota{DataMB: 1000})
	got, ok := c.GetPlanQuota(planID)
	require.True(t, ok)
	require.Equal(t, int64(1000), got.DataMB)

	c.Invalidate(planID)
	_, ok = c.GetPlanQuota(planID)
	require.False(t, ok)
}

func TestPlanQuotaCacheIgnoresZeroPlan(t *testing.T) {
	c := newPlanQuotaCache(16, time.Minute)
	c.SetPlanQuota(0, usagedomain.Quota{DataMB: 5})
	_, ok := c.GetPlanQuota(0)
	require.False(t, ok)
}

func TestPlanQuotaCacheExpires(t *testing.T) {
	c := newPlanQuotaCache(16, 20*time.Millisecond)
	c.SetPlanQuota(snowflake.ID(1), usagedomain.Quota{Unlimited: true})

	require.Eventually(t, func() bool {
		_, ok := c.GetPlanQuota(snowflake.ID(1))
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNewPlanQuotaCacheDisabled(t *testing.T) {
	c := NewPlanQuotaCache(config.Config{Usage: config.UsageConfig{QuotaCacheTTL: -1}})
	c.SetPlanQuota(snowflake.ID(3), usagedomain.Quota{DataMB: 10})
	_, ok := c.GetPlanQuota(snowflake.ID(3))
	require.False(t, ok)
}
