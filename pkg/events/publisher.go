package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for booking lifecycle events
const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingDeleted   = "booking.deleted"
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
)

// Event is the message body published for every lifecycle change
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Amount        *float64  `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers lifecycle events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// AMQPPublisher publishes JSON events to a RabbitMQ topic exchange
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends the event with its type as routing key
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func newPublishing(event Event) (amqp.Publishing, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}, nil
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing
func (NoopPublisher) Close() error { return nil }
