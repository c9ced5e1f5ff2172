package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	gomail "github.com/wneessen/go-mail"
)

const (
	smtpProviderName   = "smtp"
	defaultSMTPTimeout = 15 * time.Second
)

// SMTPTransport sends mail through the SMTP relay described in the settings.
type SMTPTransport struct {
	timeout time.Duration
}

func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	return &SMTPTransport{timeout: timeout}
}

func (t *SMTPTransport) Send(ctx context.Context, settings domain.EmailSettings, msg Message) error {
	m := gomail.NewMsg()
	if name := strings.TrimSpace(settings.FromName); name != "" {
		if err := m.FromFormat(name, settings.FromAddress); err != nil {
			return fmt.Errorf("invalid sender: %w", err)
		}
	} else if err := m.From(settings.FromAddress); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(strings.TrimSpace(msg.To)); err != nil {
		return fmt.Errorf("%w: invalid recipient: %v", domain.ErrValidation, err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	}

	opts := []gomail.Option{
		gomail.WithPort(settings.SMTPPort),
		gomail.WithTimeout(t.timeout),
	}
	if settings.SMTPSecure {
		opts = append(opts, gomail.WithSSLPort(false))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if user := strings.TrimSpace(settings.SMTPUser); user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(user),
			gomail.WithPassword(settings.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(settings.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return &provider.ProviderError{
			Provider:  smtpProviderName,
			Message:   "send failed",
			Transient: isTransientSMTPError(err),
			Cause:     err,
		}
	}

	return nil
}

func isTransientSMTPError(err error) bool {
	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) {
		return sendErr.IsTemp()
	}
	// Dial and handshake failures are worth another try.
	return !errors.Is(err, context.Canceled)
}
