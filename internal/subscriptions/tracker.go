package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// DefaultCommuteSplitHour separates morning from evening departures.
const DefaultCommuteSplitHour = 12

// SubscriptionReader loads a subscription without locking.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, id uuid.UUID) (*UserSubscription, error)
}

// LedgerStore is the transactional view the Tracker consumes and restores through.
// GetConsumption returns nil, nil when the booking drew no credit.
type LedgerStore interface {
	GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*UserSubscription, error)
	GetConsumption(ctx context.Context, bookingID uuid.UUID) (*RideConsumption, error)
	InsertConsumption(ctx context.Context, c *RideConsumption) error
	MarkConsumptionRestored(ctx context.Context, bookingID uuid.UUID, at time.Time) error
	UpdateRemainingRides(ctx context.Context, subscriptionID uuid.UUID, remaining *int) error
}

// Tracker draws and returns ride credits. It is stateless; all state lives in the store.
type Tracker struct {
	loc       *time.Location
	splitHour int
	now       func() time.Time
}

// NewTracker creates a Tracker judging commute type in loc.
func NewTracker(loc *time.Location, splitHour int) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if splitHour <= 0 || splitHour >= 24 {
		splitHour = DefaultCommuteSplitHour
	}
	return &Tracker{loc: loc, splitHour: splitHour, now: time.Now}
}

// CommuteTypeAt classifies a departure as morning or evening.
func (t *Tracker) CommuteTypeAt(departure time.Time) CommuteType {
	if departure.In(t.loc).Hour() < t.splitHour {
		return CommuteMorning
	}
	return CommuteEvening
}

func (t *Tracker) check(sub *UserSubscription, tc TripContext) error {
	if sub.UserID != tc.UserID {
		return domain.ErrNotEligible.WithMessage("subscription belongs to another user")
	}
	if !sub.Status.Usable() {
		return domain.ErrNotEligible.WithMessage("subscription is %s", sub.Status)
	}
	if tc.DepartureAt.Before(sub.StartDate) || !tc.DepartureAt.Before(sub.EndDate) {
		return domain.ErrNotEligible.WithMessage("trip departs outside the subscription period")
	}
	if sub.ValidForPickupStopID != nil && *sub.ValidForPickupStopID != tc.PickupStopID {
		return domain.ErrNotEligible.WithMessage("pickup stop is not covered")
	}
	if sub.ValidForDropOffStopID != nil && *sub.ValidForDropOffStopID != tc.DropOffStopID {
		return domain.ErrNotEligible.WithMessage("drop-off stop is not covered")
	}
	if sub.CommuteType != nil && *sub.CommuteType != t.CommuteTypeAt(tc.DepartureAt) {
		return domain.ErrNotEligible.WithMessage("subscription covers %s trips only", *sub.CommuteType)
	}
	if sub.RemainingRides != nil && *sub.RemainingRides <= 0 {
		return domain.ErrEntitlementExhausted
	}
	return nil
}

// CheckEligible runs the consume checks without drawing a credit.
func (t *Tracker) CheckEligible(ctx context.Context, reader SubscriptionReader, subscriptionID uuid.UUID, tc TripContext) error {
	sub, err := reader.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	return t.check(sub, tc)
}

// Consume draws one credit for bookingID. A booking that already holds a credit
// is a no-op. Unlimited subscriptions record the consumption without a counter.
func (t *Tracker) Consume(ctx context.Context, store LedgerStore, subscriptionID, bookingID uuid.UUID, tc TripContext) error {
	sub, err := store.GetSubscriptionForUpdate(ctx, subscriptionID)
	if err != nil {
		return err
	}

	existing, err := store.GetConsumption(ctx, bookingID)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.RestoredAt != nil {
			return domain.ErrInvalidTransition.WithMessage("ride credit for booking %s was already returned", bookingID)
		}
		return nil
	}

	if err := t.check(sub, tc); err != nil {
		return err
	}

	if sub.RemainingRides != nil {
		remaining := *sub.RemainingRides - 1
		if err := store.UpdateRemainingRides(ctx, sub.ID, &remaining); err != nil {
			return err
		}
		sub.RemainingRides = &remaining
	}

	if err := store.InsertConsumption(ctx, &RideConsumption{
		BookingID:      bookingID,
		SubscriptionID: sub.ID,
		ConsumedAt:     t.now().UTC(),
	}); err != nil {
		return err
	}

	logger.WithContext(ctx).Info("subscription ride consumed",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.Bool("unlimited", sub.RemainingRides == nil))
	return nil
}

// Restore returns the credit bookingID drew, at most once. It reports whether a
// credit was returned by this call.
func (t *Tracker) Restore(ctx context.Context, store LedgerStore, bookingID uuid.UUID) (bool, error) {
	c, err := store.GetConsumption(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if c == nil || c.RestoredAt != nil {
		return false, nil
	}

	sub, err := store.GetSubscriptionForUpdate(ctx, c.SubscriptionID)
	if err != nil {
		return false, err
	}
	if sub.RemainingRides != nil {
		remaining := *sub.RemainingRides + 1
		if err := store.UpdateRemainingRides(ctx, sub.ID, &remaining); err != nil {
			return false, err
		}
	}

	if err := store.MarkConsumptionRestored(ctx, bookingID, t.now().UTC()); err != nil {
		return false, err
	}

	logger.WithContext(ctx).Info("subscription ride restored",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("booking_id", bookingID.String()))
	return true, nil
}
