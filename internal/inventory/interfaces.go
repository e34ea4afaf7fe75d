package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/seatmap"
)

// TripReader reads trip inventory without locking.
type TripReader interface {
	GetTrip(ctx context.Context, tripID uuid.UUID) (*ScheduledTrip, error)
	GetSeatMap(ctx context.Context, vehicleID uuid.UUID) (seatmap.SeatMap, error)
	HeldSeats(ctx context.Context, tripID uuid.UUID) ([]string, error)
	// LapsedHoldSeats lists seats of pending bookings whose hold ended at or before now.
	LapsedHoldSeats(ctx context.Context, tripID uuid.UUID, now time.Time) ([]string, error)
}

// TripStore is the transactional view the Manager mutates through.
// GetTripForUpdate must lock the row for the rest of the transaction.
type TripStore interface {
	GetTripForUpdate(ctx context.Context, tripID uuid.UUID) (*ScheduledTrip, error)
	GetSeatMap(ctx context.Context, vehicleID uuid.UUID) (seatmap.SeatMap, error)
	HeldSeats(ctx context.Context, tripID uuid.UUID) ([]string, error)
	UpdateTripInventory(ctx context.Context, trip *ScheduledTrip) error
}

// Locker provides a per-key mutex. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
