package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName   = "donations.dlx"
	connectionName    = "donation-engine"
	heartbeatInterval = 10 * time.Second
	connectTimeout    = 15 * time.Second
	dialTimeout       = 5 * time.Second
	initialBackoff    = time.Second
	maxBackoff        = 30 * time.Second
)

// RabbitMQ owns the broker connection shared by the publisher and the
// consumers. A dropped connection is redialled lazily, with exponential
// backoff, the next time a channel is requested. Topology is declared once
// per connection.
type RabbitMQ struct {
	url string

	mu        sync.RWMutex
	dialOnce  sync.Once
	dialSem   chan struct{}
	conn      *amqp.Connection
	declared  bool
	closeOnce sync.Once
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	ch, err := r.channel(ctx)
	if err != nil {
		return nil, err
	}
	_ = ch.Close()

	return r, nil
}

// Close closes the connection. Safe to call more than once.
func (r *RabbitMQ) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		conn := r.conn
		r.conn = nil
		r.mu.Unlock()

		if conn != nil && !conn.IsClosed() {
			err = conn.Close()
		}
	})
	return err
}

// Ping reports whether the broker connection is currently open.
func (r *RabbitMQ) Ping() error {
	if conn := r.current(); conn == nil {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// channel opens a fresh channel on a live connection, declaring topology
// first if this connection has not done so yet.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := r.ensureTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (r *RabbitMQ) current() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := r.current(); conn != nil {
		return conn, nil
	}

	// Only one caller dials at a time; the others wait for it or for their
	// own context, whichever comes first.
	sem := r.dialLock()
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("rabbitmq dial in progress: %w", ctx.Err())
	}
	defer func() { <-sem }()

	// Another caller may have redialled while we waited.
	if conn := r.current(); conn != nil {
		return conn, nil
	}

	wait := initialBackoff
	for {
		conn, err := amqp.DialConfig(r.url, amqp.Config{
			Dial:       amqp.DefaultDial(dialTimeout),
			Heartbeat:  heartbeatInterval,
			Properties: amqp.Table{"connection_name": connectionName},
		})
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.declared = false
			r.mu.Unlock()
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled (last error: %v): %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (r *RabbitMQ) dialLock() chan struct{} {
	r.dialOnce.Do(func() {
		r.dialSem = make(chan struct{}, 1)
	})
	return r.dialSem
}

func (r *RabbitMQ) ensureTopology(ch *amqp.Channel) error {
	r.mu.RLock()
	declared := r.declared
	r.mu.RUnlock()
	if declared {
		return nil
	}

	if err := declareTopology(ch); err != nil {
		return err
	}

	r.mu.Lock()
	r.declared = true
	r.mu.Unlock()
	return nil
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// declareTopology declares, for every work queue, a durable queue whose
// rejected messages are routed through the dead-letter exchange to its DLQ.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}

	for _, queueName := range workQueues {
		dlq := DLQName(queueName)
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, queueName, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", dlq, err)
		}

		if _, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    dlxExchangeName,
			"x-dead-letter-routing-key": queueName,
		}); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", queueName, err)
		}
	}

	return nil
}
