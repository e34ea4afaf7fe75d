package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"
)

// Refunder returns money captured by a PaymentIntent.
type Refunder interface {
	RefundPaymentIntent(ctx context.Context, intentID, idempotencyKey string, metadata map[string]string) (*stripe.Refund, error)
}

// Subscriber is the subscribe half of the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, durable string, handler eventbus.Handler) error
}

// EventHandler refunds Stripe payments of paid bookings that get cancelled.
type EventHandler struct {
	refunds Refunder
}

// NewEventHandler creates an event handler backed by refunds.
func NewEventHandler(refunds Refunder) *EventHandler {
	return &EventHandler{refunds: refunds}
}

// RegisterSubscriptions subscribes to booking cancellations on the bus.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus Subscriber) error {
	subject := eventbus.BookingSubject(eventbus.TypeBookingCancelled)
	if err := bus.Subscribe(ctx, subject, "payments-booking-cancelled", h.HandleBookingCancelled); err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	logger.Info("payments: subscribed to booking cancellations for refunds")
	return nil
}

// HandleBookingCancelled refunds the booking's payment when it had been paid
// through Stripe. Refund errors are returned so the bus redelivers; the
// idempotency key keeps a redelivery from refunding twice.
func (h *EventHandler) HandleBookingCancelled(ctx context.Context, event *eventbus.Event) error {
	if event.Type != eventbus.TypeBookingCancelled {
		return nil
	}

	var data eventbus.BookingEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal booking cancelled: %w", err)
	}

	if data.PreviousStatus != string(booking.StatusConfirmed) || data.PaymentProvider != ProviderStripe || data.PaymentReference == "" {
		return nil
	}

	refund, err := h.refunds.RefundPaymentIntent(ctx, data.PaymentReference, "refund-"+data.BookingID.String(), map[string]string{
		"booking_id": data.BookingID.String(),
		"crn":        data.CRN,
	})
	if err != nil {
		logger.WithContext(ctx).Error("payments: refund failed",
			zap.String("booking_id", data.BookingID.String()),
			zap.String("intent", data.PaymentReference),
			zap.Error(err))
		return fmt.Errorf("refund booking %s: %w", data.BookingID, err)
	}

	logger.WithContext(ctx).Info("payments: booking refunded",
		zap.String("booking_id", data.BookingID.String()),
		zap.String("refund", refund.ID),
		zap.Int64("amount", refund.Amount))
	return nil
}
