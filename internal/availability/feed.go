// Package availability pushes live seat counts to websocket subscribers.
package availability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	ws "github.com/richxcame/ride-booking/pkg/websocket"
	"go.uber.org/zap"
)

// MessageType is the websocket frame type of availability updates.
const MessageType = "trip.availability"

// Topic is the hub topic followed by viewers of one trip.
func Topic(tripID uuid.UUID) string {
	return "trip:" + tripID.String()
}

// Feed turns trip.availability events into websocket frames. It is an
// eventbus.Publisher so the booking service can feed it in-process, and its
// HandleEvent subscribes it to NATS in a standalone gateway.
type Feed struct {
	hub *ws.Hub
}

// NewFeed creates a feed over hub.
func NewFeed(hub *ws.Hub) *Feed {
	return &Feed{hub: hub}
}

// Publish implements eventbus.Publisher. Other event types are ignored.
func (f *Feed) Publish(ctx context.Context, _ string, event *eventbus.Event) error {
	if event.Type != eventbus.TypeTripAvailability {
		return nil
	}
	return f.HandleEvent(ctx, event)
}

// HandleEvent implements eventbus.Handler.
func (f *Feed) HandleEvent(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.TripAvailabilityData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		// redelivery will not fix a malformed payload
		logger.WithContext(ctx).Error("availability: dropping malformed event",
			zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	return f.Push(data)
}

// Push sends one update to the trip's subscribers.
func (f *Feed) Push(data eventbus.TripAvailabilityData) error {
	topic := Topic(data.TripID)
	msg, err := ws.NewMessage(MessageType, topic, data)
	if err != nil {
		return fmt.Errorf("build availability message: %w", err)
	}
	f.hub.SendToTopic(topic, msg)
	return nil
}
