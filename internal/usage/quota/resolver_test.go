package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/telcoquota/internal/cache"
	"github.com/smallbiznis/telcoquota/internal/config"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	"github.com/smallbiznis/telcoquota/internal/subscription/domain/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T, dir subscriptiondomain.Directory) *Resolver {
	t.Helper()
	holder := config.NewStaticQuotaConfigHolder(config.QuotaConfig{
		Thresholds:         []int{100, 80, 50},
		DefaultDataQuotaMB: 42000,
	})
	return NewResolver(ResolverParam{
		Log:       zap.NewNop(),
		Directory: dir,
		Holder:    holder,
		Cache:     cache.NewPlanQuotaCache(config.Config{Usage: config.UsageConfig{QuotaCacheTTL: time.Minute}}),
	}).(*Resolver)
}

func TestResolveWithoutPlanUsesDefault(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	r := newTestResolver(t, dir)

	quota, err := r.Resolve(context.Background(), subscriptiondomain.Subscription{ID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(42000), quota.DataMB)
	require.False(t, quota.Unlimited)
}

func TestResolvePlanQuotaIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	planID := snowflake.ID(99)

	dir.EXPECT().
		FindPlanQuota(gomock.Any(), planID).
		Return(&subscriptiondomain.PlanQuota{PlanID: planID, DataQuotaMB: 1000}, nil).
		Times(1)

	r := newTestResolver(t, dir)
	sub := subscriptiondomain.Subscription{ID: 1, PlanID: &planID}

	for i := 0; i < 3; i++ {
		quota, err := r.Resolve(context.Background(), sub)
		require.NoError(t, err)
		require.Equal(t, int64(1000), quota.DataMB)
	}
}

func TestResolveUnlimitedPlan(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	planID := snowflake.ID(5)

	dir.EXPECT().
		FindPlanQuota(gomock.Any(), planID).
		Return(&subscriptiondomain.PlanQuota{PlanID: planID, Unlimited: true}, nil)

	r := newTestResolver(t, dir)
	quota, err := r.Resolve(context.Background(), subscriptiondomain.Subscription{ID: 1, PlanID: &planID})
	require.NoError(t, err)
	require.True(t, quota.Unlimited)
}

func TestResolveMissingPlanRowFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	planID := snowflake.ID(6)

	dir.EXPECT().FindPlanQuota(gomock.Any(), planID).Return(nil, nil)

	r := newTestResolver(t, dir)
	quota, err := r.Resolve(context.Background(), subscriptiondomain.Subscription{ID: 1, PlanID: &planID})
	require.NoError(t, err)
	require.Equal(t, int64(42000), quota.DataMB)
}

func TestResolvePropagatesLookupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	planID := snowflake.ID(8)
	boom := errors.New("db down")

	dir.EXPECT().FindPlanQuota(gomock.Any(), planID).Return(nil, boom)

	r := newTestResolver(t, dir)
	_, err := r.Resolve(context.Background(), subscriptiondomain.Subscription{ID: 1, PlanID: &planID})
	require.ErrorIs(t, err, boom)
}
