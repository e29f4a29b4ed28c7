package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *ServiceImpl {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer}).(*ServiceImpl)
}

func TestAuthorizeIngestRole(t *testing.T) {
	svc := newTestService(t)
	actor := Actor{Type: "api_key", ID: "k1", Role: RoleIngest}

	require.NoError(t, svc.Authorize(context.Background(), actor, ObjectUsage, ActionUsageIngest))
	err := svc.Authorize(context.Background(), actor, ObjectSubscription, ActionSubscriptionSuspend)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeAdminRole(t *testing.T) {
	svc := newTestService(t)
	actor := Actor{Type: "api_key", ID: "k2", Role: RoleAdmin}

	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectSubscription, ActionSubscriptionCancel))
	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectReservation, ActionReservationReserve))
	assert.ErrorIs(t, svc.Authorize(context.Background(), actor, ObjectSubscription, ActionSubscriptionRenew), ErrForbidden)
}

func TestAuthorizeSystemActorCanRenew(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.Authorize(context.Background(), SystemActor(), ObjectSubscription, ActionSubscriptionRenew))
	assert.NoError(t, svc.Authorize(context.Background(), SystemActor(), ObjectReservation, ActionReservationRelease))
}

func TestAuthorizeRoleChangeDropsOldGrant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{Type: "api_key", ID: "k3", Role: RoleAdmin}, ObjectSubscription, ActionSubscriptionView))
	err := svc.Authorize(ctx, Actor{Type: "api_key", ID: "k3", Role: RoleIngest}, ObjectSubscription, ActionSubscriptionView)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Role: RoleAdmin}, ObjectUsage, ActionUsageIngest), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Type: "api_key", ID: "k", Role: "owner"}, ObjectUsage, ActionUsageIngest), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Type: "api_key", ID: "k", Role: RoleAdmin}, " ", ActionUsageIngest), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Type: "api_key", ID: "k", Role: RoleAdmin}, ObjectUsage, ""), ErrInvalidAction)
}
