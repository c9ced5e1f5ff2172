package domain

import (
	"fmt"
	"strings"
	"time"
)

// DripStep is the position of a subscriber in the drip campaign.
type DripStep int

const (
	DripStepSignedUp DripStep = 0
	DripStepFirst    DripStep = 1
	DripStepSecond   DripStep = 2

	MaxDripStep = DripStepSecond
)

func (s DripStep) IsValid() bool {
	return s >= DripStepSignedUp && s <= MaxDripStep
}

// Previous returns the step a subscriber must be at to advance to s.
func (s DripStep) Previous() DripStep {
	return s - 1
}

// Subscriber is a newsletter recipient enrolled in the drip campaign.
type Subscriber struct {
	ID        string
	Email     string
	DripStep  DripStep
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueForStep reports whether the subscriber may transition into target.
// Delays are measured from CreatedAt for every step.
func (s *Subscriber) DueForStep(target DripStep, delay time.Duration, now time.Time) bool {
	if s == nil || !s.IsActive || target <= DripStepSignedUp || !target.IsValid() {
		return false
	}
	if s.DripStep != target.Previous() {
		return false
	}
	return now.Sub(s.CreatedAt) >= delay
}

func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func (s *Subscriber) Validate() error {
	if err := ValidateEmail(s.Email); err != nil {
		return err
	}
	if !s.DripStep.IsValid() {
		return fmt.Errorf("%w: invalid drip step %d", ErrValidation, s.DripStep)
	}
	return nil
}
