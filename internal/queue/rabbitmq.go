package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teleagent/teleagent/internal/config"
)

// RabbitMQQueue publishes announcements to a durable RabbitMQ queue and
// consumes them with manual acknowledgement.
type RabbitMQQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
	log  *slog.Logger
	// republish sends a failed announcement back to the queue.
	republish func(ctx context.Context, a Announcement) error
}

// NewRabbitMQQueue dials the broker and declares the queue.
func NewRabbitMQQueue(cfg config.QueueConfig, log *slog.Logger) (*RabbitMQQueue, error) {
	if cfg.RabbitURL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	name := cfg.Name
	if name == "" {
		name = config.DefaultQueueName
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set rabbitmq prefetch: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare rabbitmq queue %s: %w", name, err)
	}

	q := &RabbitMQQueue{conn: conn, ch: ch, name: name, log: log.With("component", "rabbitmq_queue")}
	q.republish = q.Publish
	return q, nil
}

func (q *RabbitMQQueue) Publish(ctx context.Context, a Announcement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode announcement: %w", err)
	}
	err = q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if errors.Is(err, amqp.ErrClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("failed to publish announcement: %w", err)
	}
	return nil
}

// Consume handles deliveries one at a time. A failed delivery is published
// again with its attempt counter raised and the original is acknowledged.
func (q *RabbitMQQueue) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := q.ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("failed to subscribe to rabbitmq queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			q.handle(ctx, d.Body, handler)
			if err := d.Ack(false); err != nil {
				q.log.WarnContext(ctx, "Failed to acknowledge announcement", "error", err)
			}
		}
	}
}

// handle runs handler on one delivery body. Malformed bodies are dropped.
func (q *RabbitMQQueue) handle(ctx context.Context, body []byte, handler Handler) {
	var a Announcement
	if err := json.Unmarshal(body, &a); err != nil {
		q.log.ErrorContext(ctx, "Dropping malformed announcement", "error", err)
		return
	}
	if err := handler(ctx, a); err != nil {
		q.requeue(ctx, a, err)
	}
}

func (q *RabbitMQQueue) requeue(ctx context.Context, a Announcement, err error) {
	a, ok := retry(ctx, q.log, a, err)
	if !ok {
		return
	}
	if pErr := q.republish(ctx, a); pErr != nil {
		q.log.ErrorContext(ctx, "Failed to re-queue announcement", "error", pErr)
	}
}

func (q *RabbitMQQueue) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}
	_ = q.ch.Close()
	if err := q.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
