package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/observability"
	"github.com/kursadbilgin/donation-engine/internal/p24"
	"github.com/kursadbilgin/donation-engine/internal/queue"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"go.uber.org/zap"
)

// defaultPublishTimeout bounds the completed-event publish so a broker
// outage cannot hold the provider's acknowledgement.
const defaultPublishTimeout = 5 * time.Second

// PaymentNotification is the provider's status callback as received.
// Every field is attacker-controllable until verified.
type PaymentNotification struct {
	MerchantID int
	PosID      int
	SessionID  string
	Amount     int64
	Currency   string
	OrderID    int64
	Sign       string
	Raw        []byte
}

// PaymentNotificationService settles donations from provider callbacks.
type PaymentNotificationService struct {
	donations repository.DonationRepository
	audit     repository.PaymentNotificationRepository
	settings  SettingsSource
	gateways  GatewayFactory
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	publishTimeout time.Duration
}

func NewPaymentNotificationService(
	donations repository.DonationRepository,
	audit repository.PaymentNotificationRepository,
	settings SettingsSource,
	gateways GatewayFactory,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*PaymentNotificationService, error) {
	if donations == nil || settings == nil || gateways == nil {
		return nil, fmt.Errorf("payment notification service dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PaymentNotificationService{
		donations: donations,
		audit:     audit,
		settings:  settings,
		gateways:  gateways,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,

		publishTimeout: defaultPublishTimeout,
	}, nil
}

func (s *PaymentNotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Handle processes one callback. A nil error means the provider should be
// acknowledged, whatever the outcome. Only missing merchant configuration
// and storage failures are returned as errors.
func (s *PaymentNotificationService) Handle(ctx context.Context, n PaymentNotification) (domain.NotificationOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("sessionId", n.SessionID),
		zap.Int64("orderId", n.OrderID),
	)

	sessionID := strings.TrimSpace(n.SessionID)
	donation, err := s.donations.GetBySessionID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("payment notification for unknown session acknowledged")
		s.record(ctx, n, domain.NotificationOutcomeUnknownSession)
		return domain.NotificationOutcomeUnknownSession, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load donation: %w", err)
	}

	if donation.Status.IsTerminal() {
		logger.Info("payment notification for settled donation acknowledged",
			zap.String("status", donation.Status.String()),
		)
		s.record(ctx, n, domain.NotificationOutcomeAlreadySettled)
		return domain.NotificationOutcomeAlreadySettled, nil
	}

	merchant, err := loadMerchantConfig(ctx, s.settings)
	if err != nil {
		if isConfigMissing(err) {
			logger.Error("payment notification received without merchant configuration", zap.Error(err))
			s.record(ctx, n, domain.NotificationOutcomeConfigMissing)
		}
		return "", err
	}
	// Verify against the environment the donation was registered in.
	merchant.Sandbox = donation.Sandbox

	gateway, err := s.gateways(merchant)
	if err != nil {
		return "", err
	}

	if n.Amount != donation.Amount || !strings.EqualFold(n.Currency, donation.Currency) {
		logger.Warn("payment notification amount differs from donation",
			zap.Int64("notifiedAmount", n.Amount),
			zap.Int64("donationAmount", donation.Amount),
			zap.String("notifiedCurrency", n.Currency),
		)
	}

	start := s.now()
	verified, verifyErr := gateway.Verify(ctx, p24.VerifyRequest{
		SessionID: sessionID,
		OrderID:   n.OrderID,
		Amount:    n.Amount,
		Currency:  n.Currency,
	})
	s.metrics.ObserveProviderCall("p24", "verify", s.now().Sub(start))
	if verifyErr != nil {
		logger.Warn("payment verification failed", zap.Error(verifyErr))
	}

	outcome := domain.NotificationOutcomeRejected
	if verified {
		outcome = domain.NotificationOutcomeVerified
		err = s.donations.MarkCompleted(ctx, sessionID, n.OrderID)
	} else {
		orderID := n.OrderID
		err = s.donations.MarkFailed(ctx, sessionID, &orderID)
	}
	switch {
	case errors.Is(err, domain.ErrConflict):
		// A concurrent delivery settled it first; its result stands.
		logger.Info("donation settled concurrently, keeping stored state")
		s.record(ctx, n, domain.NotificationOutcomeAlreadySettled)
		return domain.NotificationOutcomeAlreadySettled, nil
	case err != nil:
		return "", fmt.Errorf("failed to settle donation: %w", err)
	}

	s.record(ctx, n, outcome)
	if verified {
		s.metrics.IncDonationSettled(domain.DonationStatusCompleted.String())
		logger.Info("donation completed")
		s.publishCompleted(ctx, logger, sessionID)
	} else {
		s.metrics.IncDonationSettled(domain.DonationStatusFailed.String())
		logger.Info("donation failed verification")
	}

	return outcome, nil
}

func (s *PaymentNotificationService) publishCompleted(ctx context.Context, logger *zap.Logger, sessionID string) {
	if s.publisher == nil {
		return
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	event := queue.DonationEvent{
		EventID:       uuid.NewString(),
		Type:          queue.EventDonationCompleted,
		SessionID:     sessionID,
		CorrelationID: correlationID,
		OccurredAt:    s.now().UTC(),
	}
	// The donation is already settled; the event must not depend on the
	// caller staying connected, only on its own deadline.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(publishCtx, queue.DonationsCompletedQueue, event); err != nil {
		logger.Error("failed to publish donation completed event", zap.Error(err))
	}
}

// record writes the audit row. Failures are logged and never block the
// acknowledgement.
func (s *PaymentNotificationService) record(ctx context.Context, n PaymentNotification, outcome domain.NotificationOutcome) {
	if s.audit == nil {
		return
	}

	entry := &domain.PaymentNotification{
		ID:        uuid.NewString(),
		SessionID: strings.TrimSpace(n.SessionID),
		OrderID:   n.OrderID,
		Amount:    n.Amount,
		Currency:  n.Currency,
		Payload:   n.Raw,
		Outcome:   outcome,
		CreatedAt: s.now().UTC(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error("failed to record payment notification",
			zap.String("sessionId", entry.SessionID),
			zap.String("outcome", outcome.String()),
			zap.Error(err),
		)
	}
}
