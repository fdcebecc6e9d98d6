package subscription

import (
	"time"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/types"
)

// Window is a paid access period. End is exclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Live reports whether the window still grants access at now.
func (w Window) Live(now time.Time) bool {
	return w.End.After(now)
}

const (
	lifetimeYears     = 100
	defaultWindowDays = 30
)

// ComputeWindow returns the access window bought by one period of interval starting at start.
// Month arithmetic follows time.AddDate, so Jan 31 + 1 month lands on Mar 2 or 3.
func ComputeWindow(interval types.PlanInterval, start time.Time) Window {
	var end time.Time
	switch interval {
	case types.PlanIntervalMonthly:
		end = start.AddDate(0, 1, 0)
	case types.PlanIntervalQuarterly:
		end = start.AddDate(0, 3, 0)
	case types.PlanIntervalHalfYearly:
		end = start.AddDate(0, 6, 0)
	case types.PlanIntervalYearly:
		end = start.AddDate(1, 0, 0)
	case types.PlanIntervalLifetime, types.PlanIntervalOneTime:
		end = start.AddDate(lifetimeYears, 0, 0)
	default:
		end = start.AddDate(0, 0, defaultWindowDays)
	}
	return Window{Start: start, End: end}
}

// WindowForPayment is the window a payment grants on its own, starting when it was made.
// A nil plan falls back to the default window.
func WindowForPayment(plan *models.SubscriptionPlan, payment *models.Payment) Window {
	var interval types.PlanInterval
	if plan != nil {
		interval = plan.Interval
	}
	return ComputeWindow(interval, payment.CreatedAt)
}

// ExtendWindow stacks a renewal onto a still running window: the new period starts at
// currentEnd when that is later than paidAt, otherwise at paidAt.
func ExtendWindow(currentEnd *time.Time, interval types.PlanInterval, paidAt time.Time) Window {
	start := paidAt
	if currentEnd != nil && currentEnd.After(paidAt) {
		start = *currentEnd
	}
	return ComputeWindow(interval, start)
}
