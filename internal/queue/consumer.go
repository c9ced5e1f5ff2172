package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// RabbitMQConsumer runs a handler over one queue, resubscribing after
// broker or channel failures until its context is canceled.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume blocks until ctx is canceled. Subscription failures are logged
// and retried with backoff; they never end the loop.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	wait := initialBackoff
	for {
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Warn("donation event subscription interrupted",
			zap.String("queue", queue),
			zap.Duration("retryIn", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to subscribe to queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery settles one delivery. Undecodable or invalid messages are
// dead-lettered at once; handler failures follow actionFor.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	logger := c.logger.With(zap.String("messageId", d.MessageId))

	var event DonationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		logger.Warn("dead-lettering undecodable donation event", zap.Error(err))
		return settle(d.Reject(false), "reject")
	}
	if err := event.Validate(); err != nil {
		logger.Warn("dead-lettering invalid donation event", zap.Error(err))
		return settle(d.Reject(false), "reject")
	}

	logger = logger.With(zap.String("sessionId", event.SessionID))

	handlerErr := handler(ctx, event)
	switch actionFor(handlerErr, d.Redelivered) {
	case actionRequeue:
		logger.Warn("requeueing donation event", zap.Error(handlerErr))
		return settle(d.Nack(false, true), "nack")
	case actionDeadLetter:
		logger.Error("dead-lettering donation event",
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(handlerErr),
		)
		return settle(d.Reject(false), "reject")
	default:
		return settle(d.Ack(false), "ack")
	}
}

func settle(err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s delivery: %w", op, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the RabbitMQ client and each
// subscription closes its own channel.
func (c *RabbitMQConsumer) Close() error {
	return nil
}
