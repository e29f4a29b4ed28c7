package authorization

import "context"

const (
	RoleIngest = "ingest"
	RoleAdmin  = "admin"
	RoleSystem = "system"
)

const (
	ObjectUsage        = "usage"
	ObjectSubscription = "subscription"
	ObjectReservation  = "reservation"
)

const (
	ActionUsageIngest = "usage.ingest"
	ActionUsageView   = "usage.view"

	ActionSubscriptionView       = "subscription.view"
	ActionSubscriptionSuspend    = "subscription.suspend"
	ActionSubscriptionReactivate = "subscription.reactivate"
	ActionSubscriptionCancel     = "subscription.cancel"
	ActionSubscriptionRenew      = "subscription.renew"

	ActionReservationView     = "reservation.view"
	ActionReservationReserve  = "reservation.reserve"
	ActionReservationActivate = "reservation.activate"
	ActionReservationRelease  = "reservation.release"
	ActionReservationCreate   = "reservation.create"
)

// Actor identifies the caller being authorized. Type is "api_key" or "system".
type Actor struct {
	Type string
	ID   string
	Role string
}

// SystemActor is the identity the scheduler acts under.
func SystemActor() Actor {
	return Actor{Type: "system", ID: "scheduler", Role: RoleSystem}
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}
