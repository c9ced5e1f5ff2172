package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"go.uber.org/zap"
)

// SettingsService backs the admin settings API.
type SettingsService struct {
	settings repository.SettingsRepository
	gateways GatewayFactory
	logger   *zap.Logger
}

func NewSettingsService(settings repository.SettingsRepository, gateways GatewayFactory, logger *zap.Logger) (*SettingsService, error) {
	if settings == nil || gateways == nil {
		return nil, fmt.Errorf("settings service dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{settings: settings, gateways: gateways, logger: logger}, nil
}

func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	return s.settings.Load(ctx)
}

// Update stores the editable settings. Empty secret fields keep their stored
// values so clients never need to read secrets back.
func (s *SettingsService) Update(ctx context.Context, update domain.Settings) (*domain.Settings, error) {
	current, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	keepSecret(&update.Merchant.APIKey, current.Merchant.APIKey)
	keepSecret(&update.Merchant.CRC, current.Merchant.CRC)
	keepSecret(&update.Email.SMTPPassword, current.Email.SMTPPassword)
	keepSecret(&update.Email.ResendAPIKey, current.Email.ResendAPIKey)
	keepSecret(&update.Recaptcha.APIKey, current.Recaptcha.APIKey)

	if err := validateSettingsUpdate(update); err != nil {
		return nil, err
	}

	if err := s.settings.Save(ctx, &update); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.logger.Info("site settings updated",
		zap.Bool("sandbox", update.Merchant.Sandbox),
		zap.String("emailProvider", update.Email.Provider.String()),
		zap.Bool("dripEnabled", update.Drip.Enabled),
	)

	return s.settings.Load(ctx)
}

// TestPaymentConnection checks the stored merchant credentials against the
// provider environment they are configured for.
func (s *SettingsService) TestPaymentConnection(ctx context.Context) error {
	merchant, err := loadMerchantConfig(ctx, s.settings)
	if err != nil {
		return err
	}
	gateway, err := s.gateways(merchant)
	if err != nil {
		return err
	}
	if err := gateway.TestConnection(ctx); err != nil {
		s.logger.Warn("payment connection test failed",
			zap.Bool("sandbox", merchant.Sandbox),
			zap.Error(err),
		)
		return ErrRegistrationFailed
	}
	return nil
}

func keepSecret(field *string, stored string) {
	if strings.TrimSpace(*field) == "" {
		*field = stored
	}
}

func validateSettingsUpdate(s domain.Settings) error {
	if s.Merchant.MerchantID < 0 || s.Merchant.PosID < 0 {
		return fmt.Errorf("%w: merchant and pos ids must not be negative", domain.ErrValidation)
	}
	if s.Email.Provider != "" && !s.Email.Provider.IsValid() {
		return fmt.Errorf("%w: invalid email provider %q", domain.ErrValidation, s.Email.Provider)
	}
	if s.Email.SMTPPort < 0 || s.Email.SMTPPort > 65535 {
		return fmt.Errorf("%w: invalid smtp port %d", domain.ErrValidation, s.Email.SMTPPort)
	}
	if s.Drip.FirstDelay < time.Minute || s.Drip.SecondDelay < time.Minute {
		return fmt.Errorf("%w: drip delays must be at least one minute", domain.ErrValidation)
	}
	if s.Drip.SecondDelay <= s.Drip.FirstDelay {
		return fmt.Errorf("%w: second drip delay must be longer than the first", domain.ErrValidation)
	}
	if s.Recaptcha.MinScore < 0 || s.Recaptcha.MinScore > 1 {
		return fmt.Errorf("%w: recaptcha min score must be within [0, 1]", domain.ErrValidation)
	}
	if err := s.Recaptcha.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if url := strings.TrimSpace(s.Discord.WebhookURL); url != "" && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%w: discord webhook url must use https", domain.ErrValidation)
	}
	return nil
}
