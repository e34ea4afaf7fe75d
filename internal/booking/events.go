package booking

import (
	"context"

	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

const eventSource = "booking-service"

func bookingEventData(b *Booking, previous Status) eventbus.BookingEventData {
	data := eventbus.BookingEventData{
		BookingID:      b.ID,
		CRN:            b.CRN,
		UserID:         b.UserID,
		TripID:         b.ScheduledTripID,
		RoundTripID:    b.RoundTripID,
		Status:         string(b.Status),
		SeatIDs:        b.BookedSeatIDs,
		DepartureAt:    b.TripDepartureAt,
		TotalFareCents: b.DueFareCents(),
		Currency:       b.Currency,
		ContactPhone:   b.ContactPhone,
		Reason:         b.CancellationReason,
	}
	if previous != "" && previous != b.Status {
		data.PreviousStatus = string(previous)
	}
	if b.Payment != nil {
		data.PaymentProvider = b.Payment.Provider
		data.PaymentReference = b.Payment.Reference
	}
	if b.BoardingCode != "" {
		data.BoardingCode = b.BoardingCode
		data.BoardingCodeExpiresAt = b.BoardingOTPExpiresAt
	}
	return data
}

// publishBooking is fire-and-forget: the transition already committed.
func (s *Service) publishBooking(ctx context.Context, eventType string, b *Booking, previous Status) {
	event, err := eventbus.NewEvent(eventType, eventSource, bookingEventData(b, previous))
	if err != nil {
		logger.WithContext(ctx).Error("failed to build booking event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, eventbus.BookingSubject(eventType), event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish booking event",
			zap.String("type", eventType),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) publishAvailability(ctx context.Context, trip *inventory.ScheduledTrip) {
	if trip == nil {
		return
	}
	event, err := eventbus.NewEvent(eventbus.TypeTripAvailability, eventSource, eventbus.TripAvailabilityData{
		TripID:         trip.ID,
		Status:         string(trip.Status),
		AvailableSeats: trip.CurrentAvailableSeats,
		InitialSeats:   trip.InitialAvailableSeats,
	})
	if err != nil {
		logger.WithContext(ctx).Error("failed to build availability event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, eventbus.TripAvailabilitySubject(trip.ID), event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish availability event",
			zap.String("trip_id", trip.ID.String()),
			zap.Error(err))
	}
}
