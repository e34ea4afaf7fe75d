package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// Event is the envelope carried on every subject
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent marshals data into a new Event
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Handler processes one event; a returned error asks for redelivery
type Handler func(ctx context.Context, event *Event) error

// Publisher sends events to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, event *Event) error
}

// Bus is a JetStream-backed publisher/subscriber
type Bus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	source string
	subs   []*nats.Subscription
}

// Connect dials NATS and ensures the stream covering every subject exists
func Connect(cfg config.NATSConfig, source string) (*Bus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("eventbus: disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("eventbus: reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{SubjectBookings + ".>", SubjectTrips + ".>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}

	return &Bus{conn: conn, js: js, source: source}, nil
}

// Conn exposes the underlying connection for health checks
func (b *Bus) Conn() *nats.Conn {
	return b.conn
}

// Publish sends event to subject and waits for the stream ack
func (b *Bus) Publish(ctx context.Context, subject string, event *Event) error {
	if event.Source == "" {
		event.Source = b.source
	}
	if event.CorrelationID == "" {
		event.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := b.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(event.ID)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe attaches a durable queue consumer so each event is handled once per group
func (b *Bus) Subscribe(ctx context.Context, subject, durableName string, handler Handler) error {
	sub, err := b.js.QueueSubscribe(subject, durableName, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("eventbus: dropping malformed event", zap.String("subject", msg.Subject), zap.Error(err))
			_ = msg.Term()
			return
		}

		handlerCtx := logger.ContextWithCorrelationID(ctx, event.CorrelationID)
		if err := handler(handlerCtx, &event); err != nil {
			logger.Warn("eventbus: handler failed, requesting redelivery",
				zap.String("subject", msg.Subject),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			_ = msg.NakWithDelay(5 * time.Second)
			return
		}
		_ = msg.Ack()
	}, nats.Durable(durableName), nats.ManualAck(), nats.DeliverNew(), nats.MaxDeliver(5))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	b.subs = append(b.subs, sub)
	return nil
}

// Broadcast delivers every event on subject to this process without
// acknowledgement or redelivery. Used for ephemeral fan-out such as live seat
// counts, where each instance needs every message and a missed one is superseded.
func (b *Bus) Broadcast(ctx context.Context, subject string, handler Handler) error {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warn("eventbus: dropping malformed broadcast", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if err := handler(logger.ContextWithCorrelationID(ctx, event.CorrelationID), &event); err != nil {
			logger.Warn("eventbus: broadcast handler failed", zap.String("subject", msg.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("broadcast subscribe %s: %w", subject, err)
	}

	b.subs = append(b.subs, sub)
	return nil
}

// Close drains subscriptions and closes the connection
func (b *Bus) Close() {
	for _, sub := range b.subs {
		_ = sub.Drain()
	}
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}

// MultiPublisher publishes to several backends; the first publisher's error wins
type MultiPublisher []Publisher

// Publish implements Publisher
func (m MultiPublisher) Publish(ctx context.Context, subject string, event *Event) error {
	var firstErr error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, subject, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopPublisher discards events
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, string, *Event) error { return nil }
