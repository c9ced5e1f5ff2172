package repository

import (
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"gorm.io/datatypes"
)

// DonationModel is the persistence model for the donations table.
type DonationModel struct {
	ID        string                `gorm:"type:uuid;primaryKey"`
	SessionID string                `gorm:"type:varchar(64);not null;uniqueIndex:idx_donations_session_id"`
	Amount    int64                 `gorm:"type:bigint;not null"`
	Currency  string                `gorm:"type:varchar(3);not null"`
	Email     string                `gorm:"type:varchar(255);not null"`
	Status    domain.DonationStatus `gorm:"type:varchar(20);not null"`
	OrderID   *int64                `gorm:"type:bigint"`
	Sandbox   bool                  `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DonationModel) TableName() string {
	return "donations"
}

// SubscriberModel is the persistence model for newsletter subscribers.
type SubscriberModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex:idx_subscribers_email"`
	DripStep  int    `gorm:"type:smallint;not null;default:0"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SubscriberModel) TableName() string {
	return "subscribers"
}

// SiteSettingsModel is the single admin-editable configuration row.
type SiteSettingsModel struct {
	ID int `gorm:"primaryKey;autoIncrement:false"`

	P24MerchantID int    `gorm:"column:p24_merchant_id;not null;default:0"`
	P24PosID      int    `gorm:"column:p24_pos_id;not null;default:0"`
	P24APIKey     string `gorm:"column:p24_api_key;type:varchar(255);not null;default:''"`
	P24CRC        string `gorm:"column:p24_crc;type:varchar(255);not null;default:''"`
	P24Sandbox    bool   `gorm:"column:p24_sandbox;not null;default:true"`

	EmailProvider    string `gorm:"column:email_provider;type:varchar(10);not null;default:''"`
	EmailFromAddress string `gorm:"column:email_from_address;type:varchar(255);not null;default:''"`
	EmailFromName    string `gorm:"column:email_from_name;type:varchar(255);not null;default:''"`
	SMTPHost         string `gorm:"column:smtp_host;type:varchar(255);not null;default:''"`
	SMTPPort         int    `gorm:"column:smtp_port;not null;default:0"`
	SMTPUser         string `gorm:"column:smtp_user;type:varchar(255);not null;default:''"`
	SMTPPassword     string `gorm:"column:smtp_password;type:varchar(255);not null;default:''"`
	SMTPSecure       bool   `gorm:"column:smtp_secure;not null;default:false"`
	ResendAPIKey     string `gorm:"column:resend_api_key;type:varchar(255);not null;default:''"`

	DripEnabled            bool       `gorm:"column:drip_enabled;not null;default:false"`
	DripFirstDelayMinutes  int        `gorm:"column:drip_first_delay_minutes;not null;default:2880"`
	DripSecondDelayMinutes int        `gorm:"column:drip_second_delay_minutes;not null;default:7200"`
	LastDripRun            *time.Time `gorm:"column:last_drip_run;type:timestamptz"`

	RecaptchaEnabled   bool    `gorm:"column:recaptcha_enabled;not null;default:false"`
	RecaptchaProjectID string  `gorm:"column:recaptcha_project_id;type:varchar(255);not null;default:''"`
	RecaptchaSiteKey   string  `gorm:"column:recaptcha_site_key;type:varchar(255);not null;default:''"`
	RecaptchaAPIKey    string  `gorm:"column:recaptcha_api_key;type:varchar(255);not null;default:''"`
	RecaptchaMinScore  float64 `gorm:"column:recaptcha_min_score;not null;default:0.5"`

	DiscordWebhookURL string `gorm:"column:discord_webhook_url;type:text;not null;default:''"`

	UpdatedAt time.Time
}

func (SiteSettingsModel) TableName() string {
	return "site_settings"
}

// PaymentNotificationModel is the audit row of one provider callback.
type PaymentNotificationModel struct {
	ID        string                     `gorm:"type:uuid;primaryKey"`
	SessionID string                     `gorm:"type:varchar(64);not null;index:idx_payment_notifications_session_id"`
	OrderID   int64                      `gorm:"type:bigint;not null"`
	Amount    int64                      `gorm:"type:bigint;not null"`
	Currency  string                     `gorm:"type:varchar(3);not null"`
	Payload   datatypes.JSON             `gorm:"type:jsonb"`
	Outcome   domain.NotificationOutcome `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
}

func (PaymentNotificationModel) TableName() string {
	return "payment_notifications"
}

func donationModelFromDomain(d *domain.Donation) *DonationModel {
	if d == nil {
		return nil
	}

	return &DonationModel{
		ID:        d.ID,
		SessionID: d.SessionID,
		Amount:    d.Amount,
		Currency:  d.Currency,
		Email:     d.Email,
		Status:    d.Status,
		OrderID:   d.OrderID,
		Sandbox:   d.Sandbox,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func donationModelToDomain(m *DonationModel) *domain.Donation {
	if m == nil {
		return nil
	}

	return &domain.Donation{
		ID:        m.ID,
		SessionID: m.SessionID,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Email:     m.Email,
		Status:    m.Status,
		OrderID:   m.OrderID,
		Sandbox:   m.Sandbox,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func subscriberModelToDomain(m *SubscriberModel) *domain.Subscriber {
	if m == nil {
		return nil
	}

	return &domain.Subscriber{
		ID:        m.ID,
		Email:     m.Email,
		DripStep:  domain.DripStep(m.DripStep),
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func settingsModelToDomain(m *SiteSettingsModel) *domain.Settings {
	if m == nil {
		return nil
	}

	return &domain.Settings{
		Merchant: domain.MerchantConfig{
			MerchantID: m.P24MerchantID,
			PosID:      m.P24PosID,
			APIKey:     m.P24APIKey,
			CRC:        m.P24CRC,
			Sandbox:    m.P24Sandbox,
		},
		Email: domain.EmailSettings{
			Provider:     domain.EmailProvider(m.EmailProvider),
			FromAddress:  m.EmailFromAddress,
			FromName:     m.EmailFromName,
			SMTPHost:     m.SMTPHost,
			SMTPPort:     m.SMTPPort,
			SMTPUser:     m.SMTPUser,
			SMTPPassword: m.SMTPPassword,
			SMTPSecure:   m.SMTPSecure,
			ResendAPIKey: m.ResendAPIKey,
		},
		Drip: domain.DripSettings{
			Enabled:     m.DripEnabled,
			FirstDelay:  time.Duration(m.DripFirstDelayMinutes) * time.Minute,
			SecondDelay: time.Duration(m.DripSecondDelayMinutes) * time.Minute,
			LastRunAt:   m.LastDripRun,
		},
		Recaptcha: domain.RecaptchaSettings{
			Enabled:   m.RecaptchaEnabled,
			ProjectID: m.RecaptchaProjectID,
			SiteKey:   m.RecaptchaSiteKey,
			APIKey:    m.RecaptchaAPIKey,
			MinScore:  m.RecaptchaMinScore,
		},
		Discord: domain.DiscordSettings{
			WebhookURL: m.DiscordWebhookURL,
		},
		UpdatedAt: m.UpdatedAt,
	}
}

// settingsUpdates lists the editable columns. last_drip_run is owned by
// ClaimDripRun and never written here.
func settingsUpdates(s *domain.Settings) map[string]any {
	return map[string]any{
		"p24_merchant_id":           s.Merchant.MerchantID,
		"p24_pos_id":                s.Merchant.PosID,
		"p24_api_key":               s.Merchant.APIKey,
		"p24_crc":                   s.Merchant.CRC,
		"p24_sandbox":               s.Merchant.Sandbox,
		"email_provider":            string(s.Email.Provider),
		"email_from_address":        s.Email.FromAddress,
		"email_from_name":           s.Email.FromName,
		"smtp_host":                 s.Email.SMTPHost,
		"smtp_port":                 s.Email.SMTPPort,
		"smtp_user":                 s.Email.SMTPUser,
		"smtp_password":             s.Email.SMTPPassword,
		"smtp_secure":               s.Email.SMTPSecure,
		"resend_api_key":            s.Email.ResendAPIKey,
		"drip_enabled":              s.Drip.Enabled,
		"drip_first_delay_minutes":  int(s.Drip.FirstDelay / time.Minute),
		"drip_second_delay_minutes": int(s.Drip.SecondDelay / time.Minute),
		"recaptcha_enabled":         s.Recaptcha.Enabled,
		"recaptcha_project_id":      s.Recaptcha.ProjectID,
		"recaptcha_site_key":        s.Recaptcha.SiteKey,
		"recaptcha_api_key":         s.Recaptcha.APIKey,
		"recaptcha_min_score":       s.Recaptcha.MinScore,
		"discord_webhook_url":       s.Discord.WebhookURL,
	}
}

func paymentNotificationModelFromDomain(n *domain.PaymentNotification) *PaymentNotificationModel {
	if n == nil {
		return nil
	}

	var payload datatypes.JSON
	if len(n.Payload) > 0 {
		payload = datatypes.JSON(n.Payload)
	}

	return &PaymentNotificationModel{
		ID:        n.ID,
		SessionID: n.SessionID,
		OrderID:   n.OrderID,
		Amount:    n.Amount,
		Currency:  n.Currency,
		Payload:   payload,
		Outcome:   n.Outcome,
		CreatedAt: n.CreatedAt,
	}
}
