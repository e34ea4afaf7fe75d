// Package roundtrip books an outbound and a return leg as one unit.
package roundtrip

import (
	"context"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// LegCreator creates bookings. booking.Service implements it.
type LegCreator interface {
	Create(ctx context.Context, req *booking.CreateRequest) (*booking.Booking, error)
	CreateLinked(ctx context.Context, reqs []*booking.CreateRequest) ([]*booking.Booking, error)
}

// TripReader loads the trips a round trip is checked against.
type TripReader interface {
	GetTrip(ctx context.Context, tripID uuid.UUID) (*inventory.ScheduledTrip, error)
}

// RoundTrip is a linked outbound/return pair.
type RoundTrip struct {
	Outbound *booking.Booking `json:"outbound"`
	Return   *booking.Booking `json:"return"`
}

// Linker validates leg pairs and hands them to the booking service.
type Linker struct {
	bookings LegCreator
	trips    TripReader
}

// NewLinker creates a linker.
func NewLinker(bookings LegCreator, trips TripReader) *Linker {
	return &Linker{bookings: bookings, trips: trips}
}

// Reserve books a single leg when ret is nil and a linked pair otherwise.
func (l *Linker) Reserve(ctx context.Context, outbound, ret *booking.CreateRequest) (*RoundTrip, error) {
	if ret == nil {
		b, err := l.bookings.Create(ctx, outbound)
		if err != nil {
			return nil, err
		}
		return &RoundTrip{Outbound: b}, nil
	}
	return l.CreateRoundTrip(ctx, outbound, ret)
}

// CreateRoundTrip books both legs or neither. The return trip must not leave
// before the outbound trip is due to arrive.
func (l *Linker) CreateRoundTrip(ctx context.Context, outbound, ret *booking.CreateRequest) (*RoundTrip, error) {
	if outbound == nil || ret == nil {
		return nil, domain.ErrRoundTripInconsistent.WithMessage("both legs are required")
	}
	if outbound.UserID != ret.UserID {
		return nil, domain.ErrRoundTripInconsistent.WithMessage("legs belong to different users")
	}
	if outbound.ScheduledTripID == ret.ScheduledTripID {
		return nil, domain.ErrRoundTripInconsistent.WithMessage("outbound and return legs are on the same trip")
	}

	out, err := l.trips.GetTrip(ctx, outbound.ScheduledTripID)
	if err != nil {
		return nil, err
	}
	back, err := l.trips.GetTrip(ctx, ret.ScheduledTripID)
	if err != nil {
		return nil, err
	}
	if back.DepartureAt.Before(out.EstimatedArrivalAt) {
		return nil, domain.ErrRoundTripInconsistent.WithMessage(
			"return trip departs at %s, before the outbound trip arrives at %s",
			back.DepartureAt.UTC().Format("2006-01-02T15:04Z07:00"),
			out.EstimatedArrivalAt.UTC().Format("2006-01-02T15:04Z07:00"))
	}

	legs, err := l.bookings.CreateLinked(ctx, []*booking.CreateRequest{outbound, ret})
	if err != nil {
		logger.WithContext(ctx).Info("round trip rejected",
			zap.String("outbound_trip_id", outbound.ScheduledTripID.String()),
			zap.String("return_trip_id", ret.ScheduledTripID.String()),
			zap.Error(err))
		return nil, err
	}

	logger.WithContext(ctx).Info("round trip reserved",
		zap.String("outbound_booking_id", legs[0].ID.String()),
		zap.String("return_booking_id", legs[1].ID.String()))
	return &RoundTrip{Outbound: legs[0], Return: legs[1]}, nil
}
