package service

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/p24"
	"go.uber.org/zap"
)

var (
	// ErrRegistrationFailed is the only registration error callers see;
	// provider details stay in the logs.
	ErrRegistrationFailed = errors.New("payment registration failed")
	ErrCaptchaRejected    = errors.New("captcha verification failed")
)

// SettingsSource loads the current site settings for one operation.
type SettingsSource interface {
	Load(ctx context.Context) (*domain.Settings, error)
}

// PaymentGateway is the payment provider as seen by services.
type PaymentGateway interface {
	Register(ctx context.Context, req p24.RegisterRequest) (*p24.Registration, error)
	Verify(ctx context.Context, req p24.VerifyRequest) (bool, error)
	TestConnection(ctx context.Context) error
}

// GatewayFactory binds a gateway to one merchant configuration.
type GatewayFactory func(cfg domain.MerchantConfig) (PaymentGateway, error)

// NewP24GatewayFactory builds Przelewy24 clients sharing one HTTP client.
func NewP24GatewayFactory(httpClient *resty.Client, logger *zap.Logger) GatewayFactory {
	return func(cfg domain.MerchantConfig) (PaymentGateway, error) {
		return p24.NewClient(cfg, httpClient, logger)
	}
}

func loadMerchantConfig(ctx context.Context, settings SettingsSource) (domain.MerchantConfig, error) {
	loaded, err := settings.Load(ctx)
	if err != nil {
		return domain.MerchantConfig{}, err
	}
	if err := loaded.Merchant.Validate(); err != nil {
		return domain.MerchantConfig{}, err
	}
	return loaded.Merchant, nil
}
