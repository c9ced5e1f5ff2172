package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/mail"
	"github.com/kursadbilgin/donation-engine/internal/observability"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"go.uber.org/zap"
)

type DripRunStatus string

const (
	DripRunDisabled  DripRunStatus = "disabled"
	DripRunThrottled DripRunStatus = "throttled"
	DripRunCompleted DripRunStatus = "completed"
)

// DripStepResult counts sends for one campaign transition.
type DripStepResult struct {
	Step   domain.DripStep
	Sent   int
	Failed int
}

type DripRunResult struct {
	Status DripRunStatus
	Steps  []DripStepResult
}

func (r *DripRunResult) Processed() int {
	total := 0
	for _, step := range r.Steps {
		total += step.Sent
	}
	return total
}

// DripService advances newsletter subscribers through the drip campaign.
type DripService struct {
	subscribers    repository.SubscriberRepository
	settings       repository.SettingsRepository
	mailer         mail.Mailer
	featureEnabled bool
	siteURL        string
	batchSize      int
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
}

func NewDripService(
	subscribers repository.SubscriberRepository,
	settings repository.SettingsRepository,
	mailer mail.Mailer,
	featureEnabled bool,
	siteURL string,
	logger *zap.Logger,
) (*DripService, error) {
	if subscribers == nil || settings == nil || mailer == nil {
		return nil, fmt.Errorf("drip service dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DripService{
		subscribers:    subscribers,
		settings:       settings,
		mailer:         mailer,
		featureEnabled: featureEnabled,
		siteURL:        strings.TrimRight(strings.TrimSpace(siteURL), "/"),
		batchSize:      domain.DripBatchSize,
		logger:         logger,
		now:            time.Now,
	}, nil
}

func (s *DripService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Run performs one drip campaign pass. At most one pass per
// domain.DripRunInterval does any work; the window is claimed atomically
// before subscribers are read, so concurrent triggers cannot both send.
// Configuration and storage errors abort the run; a failed send only skips
// that subscriber.
func (s *DripService) Run(ctx context.Context) (*DripRunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	if !s.featureEnabled {
		s.metrics.IncDripRun(string(DripRunDisabled))
		return &DripRunResult{Status: DripRunDisabled}, nil
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.metrics.IncDripRun("error")
		return nil, fmt.Errorf("failed to load drip settings: %w", err)
	}
	if !settings.Drip.Enabled {
		s.metrics.IncDripRun(string(DripRunDisabled))
		return &DripRunResult{Status: DripRunDisabled}, nil
	}
	if err := settings.Email.Validate(); err != nil {
		s.metrics.IncDripRun("error")
		return nil, err
	}

	now := s.now().UTC()
	claimed, err := s.settings.ClaimDripRun(ctx, now, domain.DripRunInterval)
	if err != nil {
		s.metrics.IncDripRun("error")
		return nil, fmt.Errorf("failed to claim drip run: %w", err)
	}
	if !claimed {
		logger.Debug("drip run throttled")
		s.metrics.IncDripRun(string(DripRunThrottled))
		return &DripRunResult{Status: DripRunThrottled}, nil
	}

	// The later step runs first so a subscriber advances at most one step per run.
	result := &DripRunResult{Status: DripRunCompleted}
	for _, target := range []domain.DripStep{domain.DripStepSecond, domain.DripStepFirst} {
		stepResult, err := s.runStep(ctx, logger, settings, target, now)
		if err != nil {
			s.metrics.IncDripRun("error")
			return nil, err
		}
		result.Steps = append(result.Steps, stepResult)
	}

	s.metrics.IncDripRun(string(DripRunCompleted))
	logger.Info("drip run completed", zap.Int("processed", result.Processed()))
	return result, nil
}

func (s *DripService) runStep(
	ctx context.Context,
	logger *zap.Logger,
	settings *domain.Settings,
	target domain.DripStep,
	now time.Time,
) (DripStepResult, error) {
	result := DripStepResult{Step: target}
	delay := settings.Drip.DelayFor(target)

	due, err := s.subscribers.ListDueForStep(ctx, target, now.Add(-delay), s.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list subscribers due for step %d: %w", target, err)
	}

	for i := range due {
		subscriber := due[i]
		if !subscriber.DueForStep(target, delay, now) {
			continue
		}

		msg, err := mail.DripMessage(target, subscriber.Email, s.siteURL)
		if err != nil {
			return result, err
		}

		if err := s.mailer.Send(ctx, settings.Email, msg); err != nil {
			result.Failed++
			s.metrics.IncDripEmailFailed(int(target))
			logger.Warn("drip email failed",
				zap.String("subscriberId", subscriber.ID),
				zap.Int("step", int(target)),
				zap.Error(err),
			)
			continue
		}

		if err := s.subscribers.AdvanceStep(ctx, subscriber.ID, target.Previous(), target); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				logger.Info("subscriber step changed during drip run",
					zap.String("subscriberId", subscriber.ID),
				)
				continue
			}
			return result, fmt.Errorf("failed to advance subscriber %s: %w", subscriber.ID, err)
		}

		result.Sent++
		s.metrics.IncDripEmailSent(int(target))
	}

	return result, nil
}
