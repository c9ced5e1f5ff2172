package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/mail"
	"github.com/kursadbilgin/donation-engine/internal/observability"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	"github.com/kursadbilgin/donation-engine/internal/queue"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// DiscordNotifier posts a message to a Discord webhook.
type DiscordNotifier interface {
	Notify(ctx context.Context, webhookURL string, content string) error
}

// DonationEventWorker reacts to completed donations: it emails the donor a
// receipt and announces the donation on Discord.
type DonationEventWorker struct {
	donations   repository.DonationRepository
	settings    SettingsSource
	consumer    queue.Consumer
	mailer      mail.Mailer
	discord     DiscordNotifier
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewDonationEventWorker(
	donations repository.DonationRepository,
	settings SettingsSource,
	consumer queue.Consumer,
	mailer mail.Mailer,
	discord DiscordNotifier,
	concurrency int,
	logger *zap.Logger,
) (*DonationEventWorker, error) {
	if donations == nil || settings == nil || consumer == nil {
		return nil, fmt.Errorf("donation event worker dependencies are required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DonationEventWorker{
		donations:   donations,
		settings:    settings,
		consumer:    consumer,
		mailer:      mailer,
		discord:     discord,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

func (w *DonationEventWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes donation events until ctx is canceled.
func (w *DonationEventWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("donation event worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DonationsCompletedQueue),
			)

			if err := w.consumer.Consume(groupCtx, queue.DonationsCompletedQueue, w.processEvent); err != nil {
				w.logger.Error("donation event worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("donation event worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *DonationEventWorker) processEvent(ctx context.Context, event queue.DonationEvent) error {
	if event.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, event.CorrelationID)
	}
	logger := observability.WithContextLogger(w.logger, ctx).With(
		zap.String("eventId", event.EventID),
		zap.String("sessionId", event.SessionID),
	)

	w.metrics.IncWorkerInFlight(queue.DonationsCompletedQueue)
	defer w.metrics.DecWorkerInFlight(queue.DonationsCompletedQueue)

	donation, err := w.donations.GetBySessionID(ctx, event.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("donation %s not found: %w", event.SessionID, queue.ErrPermanent)
	}
	if err != nil {
		return fmt.Errorf("failed to load donation: %w", err)
	}
	if donation.Status != domain.DonationStatusCompleted {
		logger.Warn("skipping event for donation that is not completed",
			zap.String("status", donation.Status.String()),
		)
		return nil
	}

	settings, err := w.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := w.sendReceipt(ctx, logger, settings.Email, *donation); err != nil {
		return err
	}
	w.announce(ctx, logger, settings.Discord, *donation)

	return nil
}

// sendReceipt returns an error only when a retry could succeed.
func (w *DonationEventWorker) sendReceipt(ctx context.Context, logger *zap.Logger, settings domain.EmailSettings, donation domain.Donation) error {
	if w.mailer == nil {
		return nil
	}
	if err := settings.Validate(); err != nil {
		logger.Info("email is not configured, skipping donation receipt")
		return nil
	}

	if err := w.mailer.Send(ctx, settings, mail.ThankYouMessage(donation)); err != nil {
		if provider.IsTransient(err) {
			return fmt.Errorf("failed to send donation receipt: %w", err)
		}
		logger.Error("donation receipt rejected by email provider", zap.Error(err))
		return nil
	}

	logger.Info("donation receipt sent")
	return nil
}

// announce is best effort; a failure never causes the receipt to be resent.
func (w *DonationEventWorker) announce(ctx context.Context, logger *zap.Logger, settings domain.DiscordSettings, donation domain.Donation) {
	webhookURL := strings.TrimSpace(settings.WebhookURL)
	if w.discord == nil || webhookURL == "" {
		return
	}

	content := fmt.Sprintf("New donation received: %s", domain.FormatAmount(donation.Amount, donation.Currency))
	if donation.Sandbox {
		content += " (sandbox)"
	}
	if err := w.discord.Notify(ctx, webhookURL, content); err != nil {
		logger.Warn("failed to announce donation on discord", zap.Error(err))
	}
}
