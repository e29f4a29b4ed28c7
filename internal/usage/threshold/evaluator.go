// Package threshold decides which consequence, if any, a usage change triggers.
package threshold

import (
	"fmt"
	"math/big"

	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/events"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
)

// LimitThreshold is the percentage at which a subscription is suspended.
const LimitThreshold = 100

type Action int

const (
	ActionNone Action = iota
	ActionNotify
	ActionSuspend
)

func (a Action) String() string {
	switch a {
	case ActionNotify:
		return "notify"
	case ActionSuspend:
		return "suspend"
	default:
		return "none"
	}
}

// Decision is the outcome of one evaluation. Threshold is the percentage that
// was crossed and Percentage the new usage relative to the quota.
type Decision struct {
	Action     Action
	Threshold  int
	Percentage float64
}

// NoAction is the zero decision.
var NoAction = Decision{}

func (d Decision) IsNoAction() bool {
	return d.Action == ActionNone
}

// EventName returns the event the decision emits, or "" for NoAction.
func (d Decision) EventName() string {
	switch {
	case d.Action == ActionNone:
		return ""
	case d.Threshold >= LimitThreshold:
		return events.UsageLimitReached
	default:
		return fmt.Sprintf("usage.threshold_%d", d.Threshold)
	}
}

// Evaluate compares usage before and after one increment. Thresholds must be
// sorted in descending order; only the highest one crossed in this step fires,
// and a threshold is crossed when oldUsed is below it and newUsed is at or
// above it.
func Evaluate(oldUsed, newUsed int64, quota usagedomain.Quota, thresholds []int) Decision {
	if quota.Unlimited || quota.DataMB <= 0 || newUsed <= oldUsed {
		return NoAction
	}

	for _, t := range thresholds {
		if !reaches(oldUsed, t, quota.DataMB) && reaches(newUsed, t, quota.DataMB) {
			action := ActionNotify
			if t >= LimitThreshold {
				action = ActionSuspend
			}
			return Decision{
				Action:     action,
				Threshold:  t,
				Percentage: Percentage(newUsed, quota.DataMB),
			}
		}
	}
	return NoAction
}

// reaches reports used*100 >= threshold*quota. Counters are unbounded int64,
// so the products are taken in big.Int.
func reaches(used int64, threshold int, quota int64) bool {
	lhs := new(big.Int).Mul(big.NewInt(used), big.NewInt(100))
	rhs := new(big.Int).Mul(big.NewInt(int64(threshold)), big.NewInt(quota))
	return lhs.Cmp(rhs) >= 0
}

// Percentage returns used as a percent of quota truncated to two decimals.
func Percentage(used, quota int64) float64 {
	if quota <= 0 {
		return 0
	}
	scaled := new(big.Int).Mul(big.NewInt(used), big.NewInt(10000))
	scaled.Quo(scaled, big.NewInt(quota))
	hundredths, _ := new(big.Float).SetInt(scaled).Float64()
	return hundredths / 100
}

// Evaluator reads the current thresholds from the hot-reloaded quota config.
type Evaluator struct {
	holder *config.QuotaConfigHolder
}

func NewEvaluator(holder *config.QuotaConfigHolder) *Evaluator {
	return &Evaluator{holder: holder}
}

func (e *Evaluator) Evaluate(oldUsed, newUsed int64, quota usagedomain.Quota) Decision {
	return Evaluate(oldUsed, newUsed, quota, e.holder.Get().Thresholds)
}
