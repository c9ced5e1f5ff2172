package domain

import "time"

// NotificationOutcome records how an inbound payment notification was handled.
type NotificationOutcome string

const (
	NotificationOutcomeUnknownSession NotificationOutcome = "UNKNOWN_SESSION"
	NotificationOutcomeAlreadySettled NotificationOutcome = "ALREADY_SETTLED"
	NotificationOutcomeVerified       NotificationOutcome = "VERIFIED"
	NotificationOutcomeRejected       NotificationOutcome = "REJECTED"
	NotificationOutcomeConfigMissing  NotificationOutcome = "CONFIG_MISSING"
)

func (o NotificationOutcome) String() string { return string(o) }

// PaymentNotification is an audit entry for one provider callback.
type PaymentNotification struct {
	ID        string
	SessionID string
	OrderID   int64
	Amount    int64
	Currency  string
	Payload   []byte
	Outcome   NotificationOutcome
	CreatedAt time.Time
}
