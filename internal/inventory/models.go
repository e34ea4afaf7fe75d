package inventory

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a scheduled trip.
type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
	TripFull      TripStatus = "full"
	TripDelayed   TripStatus = "delayed"
)

// Terminal reports whether the trip can no longer change.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// AcceptsBookings reports whether seats may be reserved in this state.
// Full trips pass so the caller gets InsufficientCapacity instead.
func (s TripStatus) AcceptsBookings() bool {
	switch s {
	case TripScheduled, TripDelayed, TripFull:
		return true
	}
	return false
}

// ScheduledTrip is one departure of a route with its seat inventory.
type ScheduledTrip struct {
	ID                    uuid.UUID   `json:"id"`
	RouteID               uuid.UUID   `json:"route_id"`
	VehicleID             uuid.UUID   `json:"vehicle_id"`
	DepartureAt           time.Time   `json:"departure_at"`
	EstimatedArrivalAt    time.Time   `json:"estimated_arrival_at"`
	Status                TripStatus  `json:"status"`
	StatusBeforeFull      *TripStatus `json:"-"`
	InitialAvailableSeats int         `json:"initial_available_seats"`
	CurrentAvailableSeats int         `json:"current_available_seats"`
	PricePerSeatCents     int64       `json:"price_per_seat_cents"`
	Currency              string      `json:"currency"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// Reservation is the outcome of a successful ReserveSeats call.
type Reservation struct {
	Trip  *ScheduledTrip
	Seats []string
}

// Availability is the public view of a trip's inventory.
type Availability struct {
	TripID                uuid.UUID  `json:"trip_id"`
	Status                TripStatus `json:"status"`
	InitialAvailableSeats int        `json:"initial_available_seats"`
	CurrentAvailableSeats int        `json:"current_available_seats"`
	FreeSeatIDs           []string   `json:"free_seat_ids"`
	PricePerSeatCents     int64      `json:"price_per_seat_cents"`
	Currency              string     `json:"currency"`
	DepartureAt           time.Time  `json:"departure_at"`
}
