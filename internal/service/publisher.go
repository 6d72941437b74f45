package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/queue"
)

// EventSink receives order events.  Implementations: QueuePublisher
// (RabbitMQ) and notify.Hub (admin websocket feed).
type EventSink interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

// Fanout delivers an event to every sink and joins their errors.
type Fanout []EventSink

func (f Fanout) Publish(ctx context.Context, ev queue.OrderEvent) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// QueuePublisher publishes order events to a durable RabbitMQ queue.  A
// connection is opened per publish; order traffic is low and this keeps
// the publisher free of reconnect state.
type QueuePublisher struct {
	URL   string
	Queue string
}

func NewQueuePublisher(cfg config.EventsConfig) *QueuePublisher {
	return &QueuePublisher{URL: cfg.URL, Queue: cfg.Queue}
}

// Publish sends ev as a persistent JSON message.  Errors are returned so
// the caller can log them; they never undo the operation that produced ev.
func (p *QueuePublisher) Publish(ctx context.Context, ev queue.OrderEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type,
			Body:         body,
		})
}
