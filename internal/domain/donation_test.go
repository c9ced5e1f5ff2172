package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDonationStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    DonationStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "COMPLETED", want: DonationStatusCompleted},
		{name: "valid lowercase with spaces", input: " pending ", want: DonationStatusPending},
		{name: "invalid", input: "refunded", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDonationStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseDonationStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDonationStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseDonationStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDonationStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if DonationStatusPending.IsTerminal() {
		t.Fatal("PENDING must not be terminal")
	}
	if !DonationStatusCompleted.IsTerminal() || !DonationStatusFailed.IsTerminal() {
		t.Fatal("COMPLETED and FAILED must be terminal")
	}
}

func TestDonationValidate(t *testing.T) {
	t.Parallel()

	base := Donation{
		SessionID: "donate_1700000000000_42",
		Amount:    5000,
		Currency:  "PLN",
		Email:     "donor@example.com",
		Status:    DonationStatusPending,
	}

	tests := []struct {
		name    string
		mutate  func(*Donation)
		wantErr bool
	}{
		{name: "valid donation", mutate: func(d *Donation) {}},
		{name: "zero amount", mutate: func(d *Donation) { d.Amount = 0 }, wantErr: true},
		{name: "negative amount", mutate: func(d *Donation) { d.Amount = -100 }, wantErr: true},
		{name: "email without at", mutate: func(d *Donation) { d.Email = "donor.example.com" }, wantErr: true},
		{name: "empty email", mutate: func(d *Donation) { d.Email = "  " }, wantErr: true},
		{name: "email with space", mutate: func(d *Donation) { d.Email = "john doe@example.com" }, wantErr: true},
		{name: "email with two ats", mutate: func(d *Donation) { d.Email = "a@b@c" }, wantErr: true},
		{name: "email with display name", mutate: func(d *Donation) { d.Email = "Donor <donor@example.com>" }, wantErr: true},
		{name: "long email", mutate: func(d *Donation) { d.Email = strings.Repeat("a", MaxEmailLength) + "@x.pl" }, wantErr: true},
		{name: "lowercase currency", mutate: func(d *Donation) { d.Currency = "pln" }, wantErr: true},
		{name: "missing session id", mutate: func(d *Donation) { d.SessionID = "" }, wantErr: true},
		{name: "invalid status", mutate: func(d *Donation) { d.Status = DonationStatus("REFUNDED") }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestNewSessionID(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000_000)
	got := NewSessionID(now, func(n int) int {
		if n != sessionIDRandSpan {
			t.Fatalf("randIntn(%d), want %d", n, sessionIDRandSpan)
		}
		return 42
	})
	if got != "donate_1700000000000_42" {
		t.Fatalf("NewSessionID() = %q, want donate_1700000000000_42", got)
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{amount: 5000, currency: "PLN", want: "50.00 PLN"},
		{amount: 1, currency: "PLN", want: "0.01 PLN"},
		{amount: 123456, currency: "", want: "1234.56"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.amount, tt.currency); got != tt.want {
			t.Fatalf("FormatAmount(%d, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}
