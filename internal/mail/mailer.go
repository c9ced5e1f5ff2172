// Package mail sends transactional email through SMTP or the Resend API,
// chosen per call from the stored email settings.
package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/kursadbilgin/donation-engine/internal/domain"
)

// Message is a provider-agnostic email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(m.To)); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", domain.ErrValidation, m.To)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("%w: message body is required", domain.ErrValidation)
	}
	return nil
}

// Transport delivers a message using one concrete provider.
type Transport interface {
	Send(ctx context.Context, settings domain.EmailSettings, msg Message) error
}

// Mailer is what services depend on.
type Mailer interface {
	Send(ctx context.Context, settings domain.EmailSettings, msg Message) error
}

// Dispatcher routes each message to the transport selected by settings.Provider.
type Dispatcher struct {
	transports map[domain.EmailProvider]Transport
}

var _ Mailer = (*Dispatcher)(nil)

func NewDispatcher(smtp Transport, resend Transport) *Dispatcher {
	transports := make(map[domain.EmailProvider]Transport, 2)
	if smtp != nil {
		transports[domain.EmailProviderSMTP] = smtp
	}
	if resend != nil {
		transports[domain.EmailProviderResend] = resend
	}
	return &Dispatcher{transports: transports}
}

func (d *Dispatcher) Send(ctx context.Context, settings domain.EmailSettings, msg Message) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	transport, ok := d.transports[settings.Provider]
	if !ok {
		return fmt.Errorf("%w: no transport registered for email provider %q", domain.ErrConfigMissing, settings.Provider)
	}

	return transport.Send(ctx, settings, msg)
}

func senderAddress(settings domain.EmailSettings) string {
	name := strings.TrimSpace(settings.FromName)
	addr := strings.TrimSpace(settings.FromAddress)
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}
