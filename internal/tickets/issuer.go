package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/storage"
	"go.uber.org/zap"
)

const contentType = "application/pdf"

// Subscriber attaches durable handlers to bus subjects. *eventbus.Bus implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler eventbus.Handler) error
}

// Issuer writes a ticket when a booking is confirmed and removes it when the
// booking is cancelled. Tickets are keyed by departure month so both sides
// derive the same key from the event alone.
type Issuer struct {
	store storage.Storage
	loc   *time.Location
}

// NewIssuer creates an issuer over store.
func NewIssuer(store storage.Storage, loc *time.Location) *Issuer {
	return &Issuer{store: store, loc: loc}
}

// Key is the object key of a booking's ticket.
func Key(data eventbus.BookingEventData) string {
	return storage.TicketKey(data.BookingID, data.CRN, data.DepartureAt)
}

// RegisterSubscriptions subscribes to booking events.
func (i *Issuer) RegisterSubscriptions(ctx context.Context, bus Subscriber) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectBookings+".>", "tickets-bookings", i.HandleBookingEvent); err != nil {
		return fmt.Errorf("subscribe to booking events: %w", err)
	}
	logger.Info("tickets: subscribed to booking events")
	return nil
}

// HandleBookingEvent implements eventbus.Handler. Storage failures are returned
// so the bus redelivers; uploads and deletes are idempotent per key.
func (i *Issuer) HandleBookingEvent(ctx context.Context, event *eventbus.Event) error {
	switch event.Type {
	case eventbus.TypeBookingConfirmed, eventbus.TypeBookingCancelled:
	default:
		return nil
	}

	var data eventbus.BookingEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.WithContext(ctx).Error("tickets: dropping malformed event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	if event.Type == eventbus.TypeBookingCancelled {
		// only paid bookings ever had a ticket
		if data.PreviousStatus != "confirmed" {
			return nil
		}
		if err := i.store.Delete(ctx, Key(data)); err != nil {
			return fmt.Errorf("delete ticket %s: %w", data.CRN, err)
		}
		logger.WithContext(ctx).Info("tickets: ticket withdrawn", zap.String("booking_id", data.BookingID.String()))
		return nil
	}

	_, err := i.Issue(ctx, data)
	return err
}

// Issue renders and uploads the ticket for data.
func (i *Issuer) Issue(ctx context.Context, data eventbus.BookingEventData) (*storage.UploadResult, error) {
	pdf, err := Render(data, i.loc)
	if err != nil {
		return nil, err
	}
	result, err := i.store.Upload(ctx, Key(data), bytes.NewReader(pdf), int64(len(pdf)), contentType)
	if err != nil {
		return nil, fmt.Errorf("upload ticket %s: %w", data.CRN, err)
	}
	logger.WithContext(ctx).Info("tickets: ticket issued",
		zap.String("booking_id", data.BookingID.String()),
		zap.String("key", result.Key))
	return result, nil
}
