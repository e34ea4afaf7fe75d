package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPendingPayment   Status = "pending_payment"
	StatusConfirmed        Status = "confirmed"
	StatusOngoing          Status = "ongoing"
	StatusCompleted        Status = "completed"
	StatusCancelledByUser  Status = "cancelled_by_user"
	StatusCancelledByAdmin Status = "cancelled_by_admin"
	StatusNoShow           Status = "no_show"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the booking can no longer change.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Cancelled reports whether the booking was cancelled by anyone.
func (s Status) Cancelled() bool {
	return s == StatusCancelledByUser || s == StatusCancelledByAdmin
}

// HoldsSeats reports whether the booking's seats count against the trip.
func (s Status) HoldsSeats() bool {
	return s == StatusPendingPayment || s == StatusConfirmed || s == StatusOngoing
}

var transitions = map[Status][]Status{
	StatusPendingPayment:   {StatusConfirmed, StatusCancelledByUser, StatusCancelledByAdmin},
	StatusConfirmed:        {StatusOngoing, StatusCancelledByUser, StatusCancelledByAdmin, StatusNoShow},
	StatusOngoing:          {StatusCompleted},
	StatusCompleted:        {},
	StatusCancelledByUser:  {},
	StatusCancelledByAdmin: {},
	StatusNoShow:           {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Actor is who asked for a cancellation.
type Actor string

const (
	ActorUser  Actor = "user"
	ActorAdmin Actor = "admin"
)

// CancelledStatus is the terminal status a cancellation by a moves to.
func (a Actor) CancelledStatus() Status {
	if a == ActorAdmin {
		return StatusCancelledByAdmin
	}
	return StatusCancelledByUser
}

// Cancellation reasons recorded by the system.
const (
	ReasonHoldExpired = "STALE_HOLD_EXPIRED"
)

// PaymentDetails is stored as JSONB once a booking is paid.
type PaymentDetails struct {
	Provider        string    `json:"provider"`
	Reference       string    `json:"reference"`
	AmountPaidCents int64     `json:"amount_paid_cents"`
	TipCents        int64     `json:"tip_cents,omitempty"`
	Currency        string    `json:"currency"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// Booking is a rider's hold on seats of one scheduled trip.
type Booking struct {
	ID                   uuid.UUID       `json:"id"`
	CRN                  string          `json:"crn"`
	UserID               uuid.UUID       `json:"user_id"`
	ScheduledTripID      uuid.UUID       `json:"scheduled_trip_id"`
	PickupStopID         uuid.UUID       `json:"pickup_stop_id"`
	DropOffStopID        uuid.UUID       `json:"drop_off_stop_id"`
	NumberOfSeatsBooked  int             `json:"number_of_seats_booked"`
	BookedSeatIDs        []string        `json:"booked_seat_ids"`
	RoundTripID          *uuid.UUID      `json:"round_trip_id,omitempty"`
	SubscriptionID       *uuid.UUID      `json:"subscription_id,omitempty"`
	EntitlementConsumed  bool            `json:"entitlement_consumed"`
	BaseFareCents        int64           `json:"base_fare_cents"`
	DiscountAmountCents  int64           `json:"discount_amount_cents"`
	TaxAmountCents       int64           `json:"tax_amount_cents"`
	TipAmountCents       int64           `json:"tip_amount_cents"`
	TotalFarePaidCents   int64           `json:"total_fare_paid_cents"`
	Currency             string          `json:"currency"`
	Status               Status          `json:"status"`
	BoardingOTPHash      string          `json:"-"`
	BoardingOTPExpiresAt *time.Time      `json:"boarding_otp_expires_at,omitempty"`
	TripDepartureAt      time.Time       `json:"trip_departure_at"`
	HoldExpiresAt        *time.Time      `json:"hold_expires_at,omitempty"`
	ContactPhone         string          `json:"contact_phone,omitempty"`
	Payment              *PaymentDetails `json:"payment,omitempty"`
	CancellationReason   string          `json:"cancellation_reason,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	BoardedAt            *time.Time      `json:"boarded_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	// BoardingCode is set only on the response that issued it and never stored.
	BoardingCode string `json:"boarding_code,omitempty"`
}

// DueFareCents is baseFare - discount + tax.
func (b *Booking) DueFareCents() int64 {
	return b.BaseFareCents - b.DiscountAmountCents + b.TaxAmountCents
}

// CreateRequest asks for seats on one trip.
type CreateRequest struct {
	UserID          uuid.UUID  `json:"-"`
	ScheduledTripID uuid.UUID  `json:"scheduled_trip_id" binding:"required"`
	PickupStopID    uuid.UUID  `json:"pickup_stop_id" binding:"required"`
	DropOffStopID   uuid.UUID  `json:"drop_off_stop_id" binding:"required"`
	SeatCount       int        `json:"seat_count" binding:"required,min=1,max=20"`
	SeatIDs         []string   `json:"seat_ids,omitempty" binding:"omitempty,dive,required,max=16"`
	SubscriptionID  *uuid.UUID `json:"subscription_id,omitempty"`
	ContactPhone    string     `json:"contact_phone,omitempty" binding:"omitempty,e164"`
}

// PaymentResult is what the payment collaborator reports for a booking.
type PaymentResult struct {
	Provider        string `json:"provider" binding:"required,max=32"`
	Reference       string `json:"reference" binding:"required,max=255"`
	AmountPaidCents int64  `json:"amount_paid_cents" binding:"min=0"`
	TipCents        int64  `json:"tip_cents,omitempty" binding:"omitempty,min=0"`
}

// CancelRequest carries an optional free-text reason.
type CancelRequest struct {
	Reason string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// BoardRequest is the code the rider shows the driver.
type BoardRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}
