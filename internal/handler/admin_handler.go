package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"github.com/kursadbilgin/donation-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	// secretMask stands in for stored secrets in responses. Sending it back
	// unchanged keeps the stored value.
	secretMask = "********"
)

type DonationLister interface {
	List(ctx context.Context, params repository.DonationListParams) ([]domain.Donation, int64, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Update(ctx context.Context, update domain.Settings) (*domain.Settings, error)
	TestPaymentConnection(ctx context.Context) error
}

type AdminCredentials struct {
	User     string
	Password string
}

type AdminHandler struct {
	donations DonationLister
	settings  SettingsService
}

// RegisterAdminRoutes mounts the back-office API behind HTTP basic auth. An
// empty password locks the admin API entirely.
func RegisterAdminRoutes(router fiber.Router, donations DonationLister, settings SettingsService, creds AdminCredentials) error {
	if donations == nil || settings == nil {
		return fmt.Errorf("admin handler dependencies are required")
	}
	h := &AdminHandler{donations: donations, settings: settings}

	admin := router.Group("/v1/admin", basicauth.New(basicauth.Config{
		Realm:      "donation-engine admin",
		Authorizer: adminAuthorizer(creds),
	}))
	admin.Get("/donations", h.ListDonations)
	admin.Get("/settings", h.GetSettings)
	admin.Put("/settings", h.UpdateSettings)
	admin.Post("/settings/payment/test", h.TestPaymentConnection)

	return nil
}

func adminAuthorizer(creds AdminCredentials) func(user string, password string) bool {
	return func(user string, password string) bool {
		if creds.Password == "" {
			return false
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(creds.User)) == 1
		passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) == 1
		return userOK && passwordOK
	}
}

type donationResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	OrderID   *int64    `json:"orderId,omitempty"`
	Sandbox   bool      `json:"sandbox"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type listDonationsResponse struct {
	Data []donationResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type merchantSettingsDTO struct {
	MerchantID int    `json:"merchantId"`
	PosID      int    `json:"posId"`
	APIKey     string `json:"apiKey"`
	CRC        string `json:"crc"`
	Sandbox    bool   `json:"sandbox"`
}

type emailSettingsDTO struct {
	Provider     string `json:"provider"`
	FromAddress  string `json:"fromAddress"`
	FromName     string `json:"fromName"`
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPUser     string `json:"smtpUser"`
	SMTPPassword string `json:"smtpPassword"`
	SMTPSecure   bool   `json:"smtpSecure"`
	ResendAPIKey string `json:"resendApiKey"`
}

type dripSettingsDTO struct {
	Enabled            bool       `json:"enabled"`
	FirstDelayMinutes  int        `json:"firstDelayMinutes"`
	SecondDelayMinutes int        `json:"secondDelayMinutes"`
	LastRunAt          *time.Time `json:"lastRunAt,omitempty"`
}

type recaptchaSettingsDTO struct {
	Enabled   bool    `json:"enabled"`
	ProjectID string  `json:"projectId"`
	SiteKey   string  `json:"siteKey"`
	APIKey    string  `json:"apiKey"`
	MinScore  float64 `json:"minScore"`
}

type discordSettingsDTO struct {
	WebhookURL string `json:"webhookUrl"`
}

type settingsDTO struct {
	Merchant  merchantSettingsDTO  `json:"merchant"`
	Email     emailSettingsDTO     `json:"email"`
	Drip      dripSettingsDTO      `json:"drip"`
	Recaptcha recaptchaSettingsDTO `json:"recaptcha"`
	Discord   discordSettingsDTO   `json:"discord"`
	UpdatedAt *time.Time           `json:"updatedAt,omitempty"`
}

func (h *AdminHandler) ListDonations(c *fiber.Ctx) error {
	params, err := parseDonationListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	donations, total, err := h.donations.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]donationResponse, 0, len(donations))
	for _, d := range donations {
		data = append(data, toDonationResponse(d))
	}

	return c.Status(fiber.StatusOK).JSON(listDonationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingsDTO(settings))
}

func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsDTO
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	update, err := fromSettingsDTO(req)
	if err != nil {
		return toHTTPError(err)
	}

	saved, err := h.settings.Update(c.UserContext(), update)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingsDTO(saved))
}

func (h *AdminHandler) TestPaymentConnection(c *fiber.Ctx) error {
	err := h.settings.TestPaymentConnection(c.UserContext())
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "OK"})
	case errors.Is(err, domain.ErrConfigMissing):
		return fiber.NewError(fiber.StatusBadRequest, "payment provider credentials are not configured")
	case errors.Is(err, service.ErrRegistrationFailed):
		return fiber.NewError(fiber.StatusBadGateway, "payment provider rejected the connection test")
	default:
		return toHTTPError(err)
	}
}

func parseDonationListParams(c *fiber.Ctx) (repository.DonationListParams, error) {
	params := repository.DonationListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
		Email:    strings.TrimSpace(c.Query("email")),
	}

	if params.Page < 1 {
		return repository.DonationListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.DonationListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseDonationStatusFromString(rawStatus)
		if err != nil {
			return repository.DonationListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.DonationListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.DonationListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toDonationResponse(d domain.Donation) donationResponse {
	return donationResponse{
		ID:        d.ID,
		SessionID: d.SessionID,
		Amount:    d.Amount,
		Currency:  d.Currency,
		Email:     d.Email,
		Status:    d.Status.String(),
		OrderID:   d.OrderID,
		Sandbox:   d.Sandbox,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toSettingsDTO(s *domain.Settings) settingsDTO {
	dto := settingsDTO{
		Merchant: merchantSettingsDTO{
			MerchantID: s.Merchant.MerchantID,
			PosID:      s.Merchant.PosID,
			APIKey:     mask(s.Merchant.APIKey),
			CRC:        mask(s.Merchant.CRC),
			Sandbox:    s.Merchant.Sandbox,
		},
		Email: emailSettingsDTO{
			Provider:     s.Email.Provider.String(),
			FromAddress:  s.Email.FromAddress,
			FromName:     s.Email.FromName,
			SMTPHost:     s.Email.SMTPHost,
			SMTPPort:     s.Email.SMTPPort,
			SMTPUser:     s.Email.SMTPUser,
			SMTPPassword: mask(s.Email.SMTPPassword),
			SMTPSecure:   s.Email.SMTPSecure,
			ResendAPIKey: mask(s.Email.ResendAPIKey),
		},
		Drip: dripSettingsDTO{
			Enabled:            s.Drip.Enabled,
			FirstDelayMinutes:  int(s.Drip.DelayFor(domain.DripStepFirst) / time.Minute),
			SecondDelayMinutes: int(s.Drip.DelayFor(domain.DripStepSecond) / time.Minute),
			LastRunAt:          s.Drip.LastRunAt,
		},
		Recaptcha: recaptchaSettingsDTO{
			Enabled:   s.Recaptcha.Enabled,
			ProjectID: s.Recaptcha.ProjectID,
			SiteKey:   s.Recaptcha.SiteKey,
			APIKey:    mask(s.Recaptcha.APIKey),
			MinScore:  s.Recaptcha.Threshold(),
		},
		Discord: discordSettingsDTO{WebhookURL: s.Discord.WebhookURL},
	}
	if !s.UpdatedAt.IsZero() {
		updatedAt := s.UpdatedAt
		dto.UpdatedAt = &updatedAt
	}
	return dto
}

func fromSettingsDTO(dto settingsDTO) (domain.Settings, error) {
	settings := domain.Settings{
		Merchant: domain.MerchantConfig{
			MerchantID: dto.Merchant.MerchantID,
			PosID:      dto.Merchant.PosID,
			APIKey:     unmask(dto.Merchant.APIKey),
			CRC:        unmask(dto.Merchant.CRC),
			Sandbox:    dto.Merchant.Sandbox,
		},
		Email: domain.EmailSettings{
			FromAddress:  strings.TrimSpace(dto.Email.FromAddress),
			FromName:     strings.TrimSpace(dto.Email.FromName),
			SMTPHost:     strings.TrimSpace(dto.Email.SMTPHost),
			SMTPPort:     dto.Email.SMTPPort,
			SMTPUser:     strings.TrimSpace(dto.Email.SMTPUser),
			SMTPPassword: unmask(dto.Email.SMTPPassword),
			SMTPSecure:   dto.Email.SMTPSecure,
			ResendAPIKey: unmask(dto.Email.ResendAPIKey),
		},
		Drip: domain.DripSettings{
			Enabled:     dto.Drip.Enabled,
			FirstDelay:  time.Duration(dto.Drip.FirstDelayMinutes) * time.Minute,
			SecondDelay: time.Duration(dto.Drip.SecondDelayMinutes) * time.Minute,
		},
		Recaptcha: domain.RecaptchaSettings{
			Enabled:   dto.Recaptcha.Enabled,
			ProjectID: strings.TrimSpace(dto.Recaptcha.ProjectID),
			SiteKey:   strings.TrimSpace(dto.Recaptcha.SiteKey),
			APIKey:    unmask(dto.Recaptcha.APIKey),
			MinScore:  dto.Recaptcha.MinScore,
		},
		Discord: domain.DiscordSettings{WebhookURL: strings.TrimSpace(dto.Discord.WebhookURL)},
	}

	if raw := strings.TrimSpace(dto.Email.Provider); raw != "" {
		provider, err := domain.ParseEmailProviderFromString(raw)
		if err != nil {
			return domain.Settings{}, err
		}
		settings.Email.Provider = provider
	}

	return settings, nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return secretMask
}

func unmask(value string) string {
	value = strings.TrimSpace(value)
	if value == secretMask {
		return ""
	}
	return value
}
