package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/observability"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"go.uber.org/zap"
)

const newsletterCaptchaAction = "newsletter_subscribe"

// CaptchaAssessor scores a client-side captcha token.
type CaptchaAssessor interface {
	Assess(ctx context.Context, settings domain.RecaptchaSettings, token string, expectedAction string) (*provider.Assessment, error)
}

type SubscribeInput struct {
	Email          string
	RecaptchaToken string
}

type NewsletterService struct {
	subscribers repository.SubscriberRepository
	settings    SettingsSource
	captcha     CaptchaAssessor
	logger      *zap.Logger
}

func NewNewsletterService(
	subscribers repository.SubscriberRepository,
	settings SettingsSource,
	captcha CaptchaAssessor,
	logger *zap.Logger,
) (*NewsletterService, error) {
	if subscribers == nil || settings == nil {
		return nil, fmt.Errorf("newsletter service dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NewsletterService{
		subscribers: subscribers,
		settings:    settings,
		captcha:     captcha,
		logger:      logger,
	}, nil
}

// Subscribe enrolls email in the drip campaign, or reactivates it.
func (s *NewsletterService) Subscribe(ctx context.Context, in SubscribeInput) (*domain.Subscriber, error) {
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkCaptcha(ctx, settings.Recaptcha, in.RecaptchaToken); err != nil {
		return nil, err
	}

	subscriber, err := s.subscribers.Upsert(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to save subscriber: %w", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("newsletter subscription saved",
		zap.String("subscriberId", subscriber.ID),
		zap.Int("dripStep", int(subscriber.DripStep)),
	)
	return subscriber, nil
}

func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) error {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	return s.subscribers.Unsubscribe(ctx, normalized)
}

// checkCaptcha fails closed: an unreachable assessor rejects the signup.
func (s *NewsletterService) checkCaptcha(ctx context.Context, settings domain.RecaptchaSettings, token string) error {
	if !settings.Enabled {
		return nil
	}
	if s.captcha == nil {
		return fmt.Errorf("%w: recaptcha is enabled but no assessor is configured", domain.ErrConfigMissing)
	}

	assessment, err := s.captcha.Assess(ctx, settings, token, newsletterCaptchaAction)
	if err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("captcha assessment failed", zap.Error(err))
		return ErrCaptchaRejected
	}
	if !assessment.Passed(newsletterCaptchaAction, settings.Threshold()) {
		observability.WithContextLogger(s.logger, ctx).Info("captcha rejected newsletter signup",
			zap.String("reason", assessment.InvalidReason),
			zap.Float64("score", assessment.Score),
		)
		return ErrCaptchaRejected
	}
	return nil
}
