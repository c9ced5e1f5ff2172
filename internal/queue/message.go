package queue

import (
	"fmt"
	"strings"
	"time"
)

// EventType names a donation lifecycle event carried on the broker.
type EventType string

const (
	EventDonationCompleted EventType = "donation.completed"
)

func (t EventType) IsValid() bool {
	return t == EventDonationCompleted
}

// DonationEvent is the broker payload emitted when a donation settles.
// Consumers reload the donation by SessionID rather than trusting a copy.
type DonationEvent struct {
	EventID       string    `json:"eventId"`
	Type          EventType `json:"type"`
	SessionID     string    `json:"sessionId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (e DonationEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", e.Type)
	}
	if strings.TrimSpace(e.SessionID) == "" {
		return fmt.Errorf("sessionId is required")
	}
	return nil
}
