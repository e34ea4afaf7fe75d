package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Subject roots
const (
	SubjectBookings = "bookings"
	SubjectTrips    = "trips"
)

// Booking lifecycle event types
const (
	TypeBookingReserved      = "booking.reserved"
	TypeBookingConfirmed     = "booking.confirmed"
	TypeBookingCancelled     = "booking.cancelled"
	TypeBookingHoldExpired   = "booking.hold_expired"
	TypeBookingBoarded       = "booking.boarded"
	TypeBookingCompleted     = "booking.completed"
	TypeBookingNoShow        = "booking.no_show"
	TypeBoardingCodeReissued = "booking.boarding_code_reissued"
	TypeTripAvailability     = "trip.availability"
)

// BookingSubject maps a booking event type to its subject, e.g. bookings.confirmed
func BookingSubject(eventType string) string {
	return SubjectBookings + "." + eventType[len("booking."):]
}

// TripAvailabilitySubject is the subject seat-count changes for a trip go to
func TripAvailabilitySubject(tripID uuid.UUID) string {
	return SubjectTrips + ".availability." + tripID.String()
}

// BookingEventData is the payload of every booking.* event
type BookingEventData struct {
	BookingID      uuid.UUID  `json:"booking_id"`
	CRN            string     `json:"crn"`
	UserID         uuid.UUID  `json:"user_id"`
	TripID         uuid.UUID  `json:"trip_id"`
	RoundTripID    *uuid.UUID `json:"round_trip_id,omitempty"`
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	SeatIDs        []string   `json:"seat_ids"`
	DepartureAt    time.Time  `json:"departure_at"`
	TotalFareCents int64      `json:"total_fare_cents"`
	Currency       string     `json:"currency"`
	ContactPhone   string     `json:"contact_phone,omitempty"`
	Reason         string     `json:"reason,omitempty"`

	PaymentProvider  string `json:"payment_provider,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`

	// Set only on booking.confirmed and booking.boarding_code_reissued.
	BoardingCode          string     `json:"boarding_code,omitempty"`
	BoardingCodeExpiresAt *time.Time `json:"boarding_code_expires_at,omitempty"`
}

// TripAvailabilityData is the payload of trip.availability
type TripAvailabilityData struct {
	TripID         uuid.UUID `json:"trip_id"`
	Status         string    `json:"status"`
	AvailableSeats int       `json:"available_seats"`
	InitialSeats   int       `json:"initial_seats"`
}
