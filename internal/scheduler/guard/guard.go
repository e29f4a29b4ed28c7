package guard

import (
	"errors"
	"time"

	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
)

var (
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrRenewalNotDue         = errors.New("subscription_renewal_not_due")
	ErrInvalidRenewalPeriod  = errors.New("invalid_renewal_period")
)

// EnsureRenewable checks that a subscription picked by the renewal sweep is
// still active and due at now.
func EnsureRenewable(sub subscriptiondomain.Subscription, now time.Time) error {
	if !sub.IsActive() {
		return ErrSubscriptionNotActive
	}
	if sub.RenewAt.After(now) {
		return ErrRenewalNotDue
	}
	return nil
}

// NextRenewAt advances renewAt by whole periods until it is after now, so a
// subscription missed for several periods catches up in one sweep.
func NextRenewAt(renewAt, now time.Time, months int) (time.Time, error) {
	if months <= 0 {
		return time.Time{}, ErrInvalidRenewalPeriod
	}
	next := renewAt.UTC()
	for !next.After(now) {
		next = next.AddDate(0, months, 0)
	}
	return next, nil
}
