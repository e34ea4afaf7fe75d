package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher mirrors booking events onto a durable topic exchange for
// consumers outside the NATS cluster (billing, reporting).
type Publisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(cfg config.RabbitMQConfig) (*Publisher, error) {
	p := &Publisher{url: cfg.URL, exchange: cfg.Exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// Publish sends event with the subject as routing key. One reconnect is attempted on a closed channel.
func (p *Publisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		CorrelationId: event.CorrelationID,
		Type:          event.Type,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, subject, false, false, msg)
	if err == nil {
		return nil
	}
	if p.conn == nil || !p.conn.IsClosed() {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	logger.Warn("rabbitmq: connection lost, reconnecting", zap.Error(err))
	if err := p.connect(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, subject, false, false, msg)
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
