package subscriptions

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents a user's subscription status
type SubscriptionStatus string

const (
	StatusPendingPayment SubscriptionStatus = "pending_payment"
	StatusTrial          SubscriptionStatus = "trial"
	StatusActive         SubscriptionStatus = "active"
	StatusExpired        SubscriptionStatus = "expired"
	StatusCancelled      SubscriptionStatus = "cancelled"
)

// Usable reports whether rides can be drawn from the subscription.
func (s SubscriptionStatus) Usable() bool {
	return s == StatusActive || s == StatusTrial
}

// DurationUnit is the unit of a plan's period
type DurationUnit string

const (
	DurationDay   DurationUnit = "day"
	DurationMonth DurationUnit = "month"
	DurationYear  DurationUnit = "year"
)

// CommuteType restricts a subscription to one half of the day
type CommuteType string

const (
	CommuteMorning CommuteType = "morning"
	CommuteEvening CommuteType = "evening"
)

// SubscriptionPlan is a purchasable ride pass. Plans are immutable once created.
type SubscriptionPlan struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	DurationValue int          `json:"duration_value"`
	DurationUnit  DurationUnit `json:"duration_unit"`
	RidesIncluded *int         `json:"rides_included,omitempty"` // nil = unlimited
	TrialDays     int          `json:"trial_days"`
	PriceCents    int64        `json:"price_cents"`
	Currency      string       `json:"currency"`
	CreatedAt     time.Time    `json:"created_at"`
}

// UserSubscription is a user's purchased plan and its remaining rides.
type UserSubscription struct {
	ID                    uuid.UUID          `json:"id"`
	UserID                uuid.UUID          `json:"user_id"`
	PlanID                uuid.UUID          `json:"plan_id"`
	StartDate             time.Time          `json:"start_date"`
	EndDate               time.Time          `json:"end_date"`
	Status                SubscriptionStatus `json:"status"`
	RemainingRides        *int               `json:"remaining_rides,omitempty"` // nil = unlimited
	ValidForPickupStopID  *uuid.UUID         `json:"valid_for_pickup_stop_id,omitempty"`
	ValidForDropOffStopID *uuid.UUID         `json:"valid_for_drop_off_stop_id,omitempty"`
	CommuteType           *CommuteType       `json:"commute_type,omitempty"`
	CancelledAt           *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// RideConsumption records the credit a booking drew. One row per booking.
type RideConsumption struct {
	BookingID      uuid.UUID  `json:"booking_id"`
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	ConsumedAt     time.Time  `json:"consumed_at"`
	RestoredAt     *time.Time `json:"restored_at,omitempty"`
}

// TripContext is what eligibility is judged against.
type TripContext struct {
	UserID        uuid.UUID
	PickupStopID  uuid.UUID
	DropOffStopID uuid.UUID
	DepartureAt   time.Time
}

// ========================================
// REQUEST/RESPONSE TYPES
// ========================================

// SubscribeRequest starts a subscription awaiting payment
type SubscribeRequest struct {
	PlanID                uuid.UUID    `json:"plan_id" binding:"required"`
	ValidForPickupStopID  *uuid.UUID   `json:"valid_for_pickup_stop_id,omitempty"`
	ValidForDropOffStopID *uuid.UUID   `json:"valid_for_drop_off_stop_id,omitempty"`
	CommuteType           *CommuteType `json:"commute_type,omitempty" binding:"omitempty,oneof=morning evening"`
}

// EntitlementResponse summarises what a subscription still covers
type EntitlementResponse struct {
	SubscriptionID        uuid.UUID          `json:"subscription_id"`
	Status                SubscriptionStatus `json:"status"`
	Unlimited             bool               `json:"unlimited"`
	RemainingRides        *int               `json:"remaining_rides,omitempty"`
	RidesConsumed         int                `json:"rides_consumed"`
	StartDate             time.Time          `json:"start_date"`
	EndDate               time.Time          `json:"end_date"`
	DaysRemaining         int                `json:"days_remaining"`
	CommuteType           *CommuteType       `json:"commute_type,omitempty"`
	ValidForPickupStopID  *uuid.UUID         `json:"valid_for_pickup_stop_id,omitempty"`
	ValidForDropOffStopID *uuid.UUID         `json:"valid_for_drop_off_stop_id,omitempty"`
}
