package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/internal/subscriptions"
)

// Tx is the transactional view every state change runs through. Row locks taken
// through it are held until the transaction ends.
type Tx interface {
	inventory.TripStore
	subscriptions.LedgerStore
	subscriptions.SubscriptionReader
	routes.StopReader

	InsertBooking(ctx context.Context, b *Booking) error
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBooking(ctx context.Context, b *Booking) error
	// ListExpiredHoldsForUpdate locks the trip's pending bookings whose hold ended before now.
	ListExpiredHoldsForUpdate(ctx context.Context, tripID uuid.UUID, now time.Time) ([]*Booking, error)
	// SeatsBoarded reports whether another ongoing booking of the trip holds any of seats.
	SeatsBoarded(ctx context.Context, tripID uuid.UUID, seats []string, exclude uuid.UUID) (bool, error)
}

// Store opens transactions and serves unlocked reads.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookingsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Booking, int64, error)
	inventory.TripReader
}

// PaymentConfirmer is the payment collaborator. It reports whether the payment
// referenced by result really settled for the booking.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, b *Booking, result PaymentResult) (bool, error)
}
