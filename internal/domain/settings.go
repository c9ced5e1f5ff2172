package domain

import (
	"fmt"
	"strings"
	"time"
)

// MerchantConfig holds Przelewy24 credentials. Sandbox selects the
// environment for both registration and verification.
type MerchantConfig struct {
	MerchantID int
	PosID      int
	APIKey     string
	CRC        string
	Sandbox    bool
}

func (c MerchantConfig) Validate() error {
	if c.MerchantID <= 0 || strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.CRC) == "" {
		return fmt.Errorf("%w: przelewy24 merchant credentials are not configured", ErrConfigMissing)
	}
	return nil
}

// EffectivePosID falls back to the merchant id, which P24 uses as the
// default point of sale.
func (c MerchantConfig) EffectivePosID() int {
	if c.PosID > 0 {
		return c.PosID
	}
	return c.MerchantID
}

// EmailProvider selects the outbound email transport.
type EmailProvider string

const (
	EmailProviderSMTP   EmailProvider = "SMTP"
	EmailProviderResend EmailProvider = "RESEND"
)

func (p EmailProvider) String() string { return string(p) }

func (p EmailProvider) IsValid() bool {
	switch p {
	case EmailProviderSMTP, EmailProviderResend:
		return true
	}
	return false
}

func ParseEmailProviderFromString(s string) (EmailProvider, error) {
	p := EmailProvider(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid email provider %q", ErrValidation, s)
	}
	return p, nil
}

type EmailSettings struct {
	Provider     EmailProvider
	FromAddress  string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSecure   bool
	ResendAPIKey string
}

func (s EmailSettings) Validate() error {
	if strings.TrimSpace(s.FromAddress) == "" {
		return fmt.Errorf("%w: email sender address is not configured", ErrConfigMissing)
	}
	switch s.Provider {
	case EmailProviderSMTP:
		if strings.TrimSpace(s.SMTPHost) == "" || s.SMTPPort <= 0 {
			return fmt.Errorf("%w: smtp host and port are not configured", ErrConfigMissing)
		}
	case EmailProviderResend:
		if strings.TrimSpace(s.ResendAPIKey) == "" {
			return fmt.Errorf("%w: resend api key is not configured", ErrConfigMissing)
		}
	default:
		return fmt.Errorf("%w: email provider is not configured", ErrConfigMissing)
	}
	return nil
}

const (
	DefaultDripFirstDelay  = 2 * 24 * time.Hour
	DefaultDripSecondDelay = 5 * 24 * time.Hour
	DripRunInterval        = 60 * time.Minute
	DripBatchSize          = 50
)

type DripSettings struct {
	Enabled     bool
	FirstDelay  time.Duration
	SecondDelay time.Duration
	LastRunAt   *time.Time
}

// DelayFor returns the delay since signup after which a subscriber enters step.
func (s DripSettings) DelayFor(step DripStep) time.Duration {
	switch step {
	case DripStepFirst:
		if s.FirstDelay > 0 {
			return s.FirstDelay
		}
		return DefaultDripFirstDelay
	case DripStepSecond:
		if s.SecondDelay > 0 {
			return s.SecondDelay
		}
		return DefaultDripSecondDelay
	}
	return 0
}

const DefaultRecaptchaMinScore = 0.5

type RecaptchaSettings struct {
	Enabled   bool
	ProjectID string
	SiteKey   string
	APIKey    string
	MinScore  float64
}

func (s RecaptchaSettings) Validate() error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.ProjectID) == "" || strings.TrimSpace(s.SiteKey) == "" || strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("%w: recaptcha project, site key and api key are required", ErrConfigMissing)
	}
	return nil
}

func (s RecaptchaSettings) Threshold() float64 {
	if s.MinScore <= 0 {
		return DefaultRecaptchaMinScore
	}
	return s.MinScore
}

type DiscordSettings struct {
	WebhookURL string
}

// Settings is the singleton, admin-editable site configuration.
type Settings struct {
	Merchant  MerchantConfig
	Email     EmailSettings
	Drip      DripSettings
	Recaptcha RecaptchaSettings
	Discord   DiscordSettings
	UpdatedAt time.Time
}
