package queue

import (
	"context"
	"errors"
	"fmt"
)

// Publisher publishes donation events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event DonationEvent) error
	Close() error
}

// MessageHandler handles a consumed donation event.
type MessageHandler func(ctx context.Context, event DonationEvent) error

// Consumer consumes donation events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// ErrPermanent marks a handler failure that must not be redelivered.
var ErrPermanent = errors.New("permanent message failure")

// DonationsCompletedQueue receives one event per donation that reached COMPLETED.
const DonationsCompletedQueue = "donations.completed"

var workQueues = []string{DonationsCompletedQueue}

// DLQName returns the dead-letter queue for a work queue, e.g. dlq.donations.completed.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

func WorkQueueNames() []string {
	return append([]string(nil), workQueues...)
}

func DLQNames() []string {
	queues := make([]string, 0, len(workQueues))
	for _, queue := range workQueues {
		queues = append(queues, DLQName(queue))
	}
	return queues
}

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
	actionDeadLetter
)

// actionFor decides the fate of a delivery after its handler ran. A failed
// delivery is requeued once; a second failure or a permanent error goes to
// the dead-letter queue.
func actionFor(handlerErr error, redelivered bool) deliveryAction {
	switch {
	case handlerErr == nil:
		return actionAck
	case errors.Is(handlerErr, ErrPermanent), redelivered:
		return actionDeadLetter
	default:
		return actionRequeue
	}
}
