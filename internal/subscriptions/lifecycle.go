package subscriptions

import (
	"time"

	"github.com/richxcame/ride-booking/internal/domain"
)

// PeriodEnd is the end of one plan period starting at start.
func PeriodEnd(plan *SubscriptionPlan, start time.Time) time.Time {
	switch plan.DurationUnit {
	case DurationDay:
		return start.AddDate(0, 0, plan.DurationValue)
	case DurationYear:
		return start.AddDate(plan.DurationValue, 0, 0)
	default:
		return start.AddDate(0, plan.DurationValue, 0)
	}
}

// Activate moves a paid subscription to trial (plans with trial days) or active.
// The trial runs in front of the paid period.
func Activate(sub *UserSubscription, plan *SubscriptionPlan, paidAt time.Time) error {
	if sub.Status != StatusPendingPayment {
		return domain.ErrInvalidTransition.WithMessage("cannot activate a %s subscription", sub.Status)
	}

	sub.StartDate = paidAt
	periodStart := paidAt
	sub.Status = StatusActive
	if plan.TrialDays > 0 {
		sub.Status = StatusTrial
		periodStart = paidAt.AddDate(0, 0, plan.TrialDays)
	}
	sub.EndDate = PeriodEnd(plan, periodStart)

	if plan.RidesIncluded != nil {
		rides := *plan.RidesIncluded
		sub.RemainingRides = &rides
	} else {
		sub.RemainingRides = nil
	}
	return nil
}

// Cancel ends an active or trial subscription at the user's request.
func Cancel(sub *UserSubscription, at time.Time) error {
	if sub.Status != StatusActive && sub.Status != StatusTrial && sub.Status != StatusPendingPayment {
		return domain.ErrInvalidTransition.WithMessage("cannot cancel a %s subscription", sub.Status)
	}
	sub.Status = StatusCancelled
	sub.CancelledAt = &at
	return nil
}

// Expired reports whether an active or trial subscription is past its end date.
func Expired(sub *UserSubscription, now time.Time) bool {
	return sub.Status.Usable() && !now.Before(sub.EndDate)
}
