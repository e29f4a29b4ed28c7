package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads persisted policies through the gorm adapter and seeds the
// built-in role policies.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	actorType := strings.TrimSpace(actor.Type)
	actorID := strings.TrimSpace(actor.ID)
	if actorType == "" || actorID == "" {
		return ErrInvalidActor
	}
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if !knownRole(role) {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("%s:%s", actorType, actorID)
	roleName := fmt.Sprintf("role:%s", role)
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor_type", actorType),
			zap.String("actor_id", actorID),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	_ = ctx
	return nil
}

// ensureGrouping keeps exactly one role link per subject so a key whose role
// changed in configuration loses the old permissions.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func knownRole(role string) bool {
	switch role {
	case RoleIngest, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Usage feeds from the network side.
		{"role:ingest", ObjectUsage, ActionUsageIngest},

		// Operators.
		{"role:admin", ObjectUsage, ActionUsageIngest},
		{"role:admin", ObjectUsage, ActionUsageView},
		{"role:admin", ObjectSubscription, ActionSubscriptionView},
		{"role:admin", ObjectSubscription, ActionSubscriptionSuspend},
		{"role:admin", ObjectSubscription, ActionSubscriptionReactivate},
		{"role:admin", ObjectSubscription, ActionSubscriptionCancel},
		{"role:admin", ObjectReservation, ActionReservationView},
		{"role:admin", ObjectReservation, ActionReservationReserve},
		{"role:admin", ObjectReservation, ActionReservationActivate},
		{"role:admin", ObjectReservation, ActionReservationRelease},
		{"role:admin", ObjectReservation, ActionReservationCreate},

		// Scheduler sweeps.
		{"role:system", ObjectSubscription, ActionSubscriptionRenew},
		{"role:system", ObjectSubscription, ActionSubscriptionSuspend},
		{"role:system", ObjectReservation, ActionReservationRelease},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy[0], policy[1], policy[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}
