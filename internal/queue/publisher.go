package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes donation events on a confirm-mode channel and
// waits for the broker to take responsibility for each message. Every step,
// including waiting for another in-flight publish, is bounded by the caller's
// context.
type RabbitMQPublisher struct {
	client *RabbitMQ

	sem chan struct{}
	ch  *amqp.Channel
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, sem: make(chan struct{}, 1)}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, event DonationEvent) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid donation event: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode donation event: %w", err)
	}

	if err := p.lock(ctx); err != nil {
		return fmt.Errorf("publish to queue %q: %w", queue, err)
	}
	defer p.unlock()

	ch, err := p.confirmChannel(ctx)
	if err != nil {
		return err
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     event.OccurredAt,
		Type:          string(event.Type),
		MessageId:     event.EventID,
		CorrelationId: event.CorrelationID,
		Body:          body,
	})
	if err != nil {
		p.resetChannel()
		return fmt.Errorf("failed to publish to queue %q: %w", queue, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		p.resetChannel()
		return fmt.Errorf("publish to queue %q not confirmed: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("broker refused event %s for queue %q", event.EventID, queue)
	}
	return nil
}

// Close releases the publisher's channel; the connection belongs to the
// RabbitMQ client.
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.lock(context.Background()); err != nil {
		return err
	}
	defer p.unlock()
	p.resetChannel()
	return nil
}

func (p *RabbitMQPublisher) lock(ctx context.Context) error {
	if p.sem == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RabbitMQPublisher) unlock() {
	<-p.sem
}

func (p *RabbitMQPublisher) confirmChannel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p.ch = ch
	return ch, nil
}

func (p *RabbitMQPublisher) resetChannel() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}
