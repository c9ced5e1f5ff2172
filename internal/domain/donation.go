package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// DonationStatus represents the lifecycle state of a donation.
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "PENDING"
	DonationStatusCompleted DonationStatus = "COMPLETED"
	DonationStatusFailed    DonationStatus = "FAILED"
)

func (s DonationStatus) String() string { return string(s) }

func (s DonationStatus) IsValid() bool {
	switch s {
	case DonationStatusPending, DonationStatusCompleted, DonationStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s DonationStatus) IsTerminal() bool {
	return s == DonationStatusCompleted || s == DonationStatusFailed
}

func ParseDonationStatusFromString(s string) (DonationStatus, error) {
	st := DonationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid donation status %q", ErrValidation, s)
	}
	return st, nil
}

const (
	DefaultCurrency = "PLN"
	MaxEmailLength  = 255

	sessionIDPrefix   = "donate_"
	sessionIDRandSpan = 1_000_000
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Donation is a payer's pledge tracked from registration to settlement.
// SessionID is generated locally before registration and is the only key
// used to correlate the provider's asynchronous notification.
type Donation struct {
	ID        string
	SessionID string
	Amount    int64
	Currency  string
	Email     string
	Status    DonationStatus
	OrderID   *int64
	Sandbox   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Donation) Validate() error {
	if strings.TrimSpace(d.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", ErrValidation)
	}
	if err := ValidateAmount(d.Amount); err != nil {
		return err
	}
	if err := ValidateEmail(d.Email); err != nil {
		return err
	}
	if !currencyPattern.MatchString(d.Currency) {
		return fmt.Errorf("%w: invalid currency %q", ErrValidation, d.Currency)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: invalid donation status %q", ErrValidation, d.Status)
	}
	return nil
}

// ValidateAmount checks an amount expressed in minor currency units.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive number of minor units", ErrValidation)
	}
	return nil
}

func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(trimmed) > MaxEmailLength {
		return fmt.Errorf("%w: email exceeds %d characters", ErrValidation, MaxEmailLength)
	}
	// Same rule the mailer applies to recipients, restricted to a bare
	// address without display name.
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return fmt.Errorf("%w: email is not a valid address", ErrValidation)
	}
	return nil
}

// NewSessionID builds a donate_<unixMillis>_<random> correlation key.
// It is unique per process in practice, not cryptographically.
func NewSessionID(now time.Time, randIntn func(n int) int) string {
	suffix := 0
	if randIntn != nil {
		suffix = randIntn(sessionIDRandSpan)
	}
	return fmt.Sprintf("%s%d_%d", sessionIDPrefix, now.UnixMilli(), suffix)
}
