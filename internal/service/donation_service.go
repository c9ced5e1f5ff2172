package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/observability"
	"github.com/kursadbilgin/donation-engine/internal/p24"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultDonationDescription = "Donation"
	notifyPath                 = "/v1/payments/p24/notify"
	returnPath                 = "/donate/thank-you"
)

type InitiateDonationInput struct {
	Amount      int64
	Currency    string
	Email       string
	Description string
	Language    string
}

type DonationRedirect struct {
	SessionID   string
	RedirectURL string
}

// DonationService registers donations with the payment provider.
type DonationService struct {
	donations     repository.DonationRepository
	settings      SettingsSource
	gateways      GatewayFactory
	publicBaseURL string
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
	randIntn      func(n int) int
}

func NewDonationService(
	donations repository.DonationRepository,
	settings SettingsSource,
	gateways GatewayFactory,
	publicBaseURL string,
	logger *zap.Logger,
) (*DonationService, error) {
	if donations == nil || settings == nil || gateways == nil {
		return nil, fmt.Errorf("donation service dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DonationService{
		donations:     donations,
		settings:      settings,
		gateways:      gateways,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
		now:           time.Now,
		randIntn:      rand.Intn,
	}, nil
}

func (s *DonationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Initiate persists a PENDING donation and registers it with the provider.
// The record exists before the payer can be redirected; if registration
// fails it is marked FAILED.
func (s *DonationService) Initiate(ctx context.Context, in InitiateDonationInput) (*DonationRedirect, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmail(in.Email); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	merchant, err := loadMerchantConfig(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	gateway, err := s.gateways(merchant)
	if err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	now := s.now().UTC()
	donation := &domain.Donation{
		ID:        uuid.NewString(),
		SessionID: domain.NewSessionID(now, s.randIntn),
		Amount:    in.Amount,
		Currency:  currency,
		Email:     strings.TrimSpace(in.Email),
		Status:    domain.DonationStatusPending,
		Sandbox:   merchant.Sandbox,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := donation.Validate(); err != nil {
		return nil, err
	}

	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, fmt.Errorf("failed to persist donation: %w", err)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = defaultDonationDescription
	}

	start := s.now()
	registration, err := gateway.Register(ctx, p24.RegisterRequest{
		SessionID:   donation.SessionID,
		Amount:      donation.Amount,
		Currency:    donation.Currency,
		Description: description,
		Email:       donation.Email,
		Language:    in.Language,
		URLReturn:   s.publicBaseURL + returnPath + "?session=" + donation.SessionID,
		URLStatus:   s.publicBaseURL + notifyPath,
	})
	s.metrics.ObserveProviderCall("p24", "register", s.now().Sub(start))
	if err != nil {
		logger.Error("payment registration rejected",
			zap.String("sessionId", donation.SessionID),
			zap.Bool("sandbox", donation.Sandbox),
			zap.Error(err),
		)
		s.metrics.IncDonationRegistered("rejected")

		if markErr := s.donations.MarkFailed(ctx, donation.SessionID, nil); markErr != nil {
			logger.Error("failed to mark unregistered donation as failed",
				zap.String("sessionId", donation.SessionID),
				zap.Error(markErr),
			)
		}
		return nil, ErrRegistrationFailed
	}

	s.metrics.IncDonationRegistered("registered")
	logger.Info("donation registered",
		zap.String("sessionId", donation.SessionID),
		zap.Int64("amount", donation.Amount),
		zap.String("currency", donation.Currency),
	)

	return &DonationRedirect{
		SessionID:   donation.SessionID,
		RedirectURL: registration.PaymentURL,
	}, nil
}

func (s *DonationService) GetBySessionID(ctx context.Context, sessionID string) (*domain.Donation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	return s.donations.GetBySessionID(ctx, sessionID)
}

func (s *DonationService) List(ctx context.Context, params repository.DonationListParams) ([]domain.Donation, int64, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, fmt.Errorf("%w: from must be before to", domain.ErrValidation)
	}
	donations, total, err := s.donations.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}

func isConfigMissing(err error) bool {
	return errors.Is(err, domain.ErrConfigMissing)
}
