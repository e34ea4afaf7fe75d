package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// Subscriber attaches durable handlers to bus subjects. *eventbus.Bus implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler eventbus.Handler) error
}

// EventHandler turns booking events into notifications.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the notification service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to booking lifecycle events.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus Subscriber) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectBookings+".>", "notifications-bookings", h.HandleBookingEvent); err != nil {
		return fmt.Errorf("subscribe to booking events: %w", err)
	}
	logger.Info("notifications: subscribed to booking lifecycle events")
	return nil
}

// HandleBookingEvent implements eventbus.Handler. Delivery failures are logged,
// not redelivered: a rider should not get the same message twice.
func (h *EventHandler) HandleBookingEvent(ctx context.Context, event *eventbus.Event) error {
	var notify func(context.Context, eventbus.BookingEventData) error
	switch event.Type {
	case eventbus.TypeBookingConfirmed:
		notify = h.service.NotifyConfirmed
	case eventbus.TypeBoardingCodeReissued:
		notify = h.service.NotifyCodeReissued
	case eventbus.TypeBookingCancelled:
		notify = h.service.NotifyCancelled
	case eventbus.TypeBookingHoldExpired:
		notify = h.service.NotifyHoldExpired
	case eventbus.TypeBookingBoarded:
		notify = h.service.NotifyBoarded
	case eventbus.TypeBookingCompleted:
		notify = h.service.NotifyCompleted
	case eventbus.TypeBookingNoShow:
		notify = h.service.NotifyNoShow
	default:
		logger.Debug("notifications: ignoring event", zap.String("type", event.Type))
		return nil
	}

	var data eventbus.BookingEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s: %w", event.Type, err)
	}

	if err := notify(ctx, data); err != nil {
		logSendFailure(ctx, event.Type, data, err)
	}
	return nil
}
