package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/mail"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	"go.uber.org/zap"
)

func recaptchaSettings() *domain.Settings {
	settings := testSettings()
	settings.Recaptcha = domain.RecaptchaSettings{
		Enabled:   true,
		ProjectID: "association",
		SiteKey:   "site-key",
		APIKey:    "api-key",
		MinScore:  0.5,
	}
	return settings
}

func TestNewsletterServiceSubscribeNormalizesEmail(t *testing.T) {
	t.Parallel()

	var stored string
	subscribers := &fakeSubscriberRepo{
		upsertFn: func(ctx context.Context, email string) (*domain.Subscriber, error) {
			stored = email
			return &domain.Subscriber{ID: "sub-1", Email: email, IsActive: true}, nil
		},
	}

	svc, err := NewNewsletterService(subscribers, &fakeSettingsRepo{settings: testSettings()}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNewsletterService() error = %v", err)
	}

	subscriber, err := svc.Subscribe(context.Background(), SubscribeInput{Email: "  Reader@Example.COM "})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if stored != "reader@example.com" || subscriber.Email != "reader@example.com" {
		t.Fatalf("stored email = %q, want reader@example.com", stored)
	}
}

func TestNewsletterServiceSubscribeCaptcha(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		captcha CaptchaAssessor
		wantErr error
	}{
		{
			name:    "passing score",
			captcha: &fakeCaptcha{},
		},
		{
			name: "low score",
			captcha: &fakeCaptcha{assessFn: func(ctx context.Context, settings domain.RecaptchaSettings, token string, expectedAction string) (*provider.Assessment, error) {
				return &provider.Assessment{Valid: true, Action: expectedAction, Score: 0.1}, nil
			}},
			wantErr: ErrCaptchaRejected,
		},
		{
			name: "wrong action",
			captcha: &fakeCaptcha{assessFn: func(ctx context.Context, settings domain.RecaptchaSettings, token string, expectedAction string) (*provider.Assessment, error) {
				return &provider.Assessment{Valid: true, Action: "login", Score: 0.9}, nil
			}},
			wantErr: ErrCaptchaRejected,
		},
		{
			name: "assessor unreachable",
			captcha: &fakeCaptcha{assessFn: func(ctx context.Context, settings domain.RecaptchaSettings, token string, expectedAction string) (*provider.Assessment, error) {
				return nil, provider.RequestFailed("recaptcha", errors.New("connection refused"))
			}},
			wantErr: ErrCaptchaRejected,
		},
		{
			name:    "no assessor configured",
			captcha: nil,
			wantErr: domain.ErrConfigMissing,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			upserted := false
			subscribers := &fakeSubscriberRepo{
				upsertFn: func(ctx context.Context, email string) (*domain.Subscriber, error) {
					upserted = true
					return &domain.Subscriber{ID: "sub-1", Email: email, IsActive: true}, nil
				},
			}

			svc, err := NewNewsletterService(subscribers, &fakeSettingsRepo{settings: recaptchaSettings()}, tc.captcha, zap.NewNop())
			if err != nil {
				t.Fatalf("NewNewsletterService() error = %v", err)
			}

			_, err = svc.Subscribe(context.Background(), SubscribeInput{Email: "reader@example.com", RecaptchaToken: "token"})
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Subscribe() error = %v", err)
				}
				if !upserted {
					t.Fatal("expected subscriber to be saved")
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Subscribe() error = %v, want %v", err, tc.wantErr)
			}
			if upserted {
				t.Fatal("rejected signup must not be saved")
			}
		})
	}
}

func TestNewsletterServiceRejectsInvalidEmail(t *testing.T) {
	t.Parallel()

	svc, err := NewNewsletterService(&fakeSubscriberRepo{}, &fakeSettingsRepo{settings: testSettings()}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNewsletterService() error = %v", err)
	}

	if _, err := svc.Subscribe(context.Background(), SubscribeInput{Email: "not-an-email"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Subscribe() error = %v, want ErrValidation", err)
	}
	if err := svc.Unsubscribe(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Unsubscribe() error = %v, want ErrValidation", err)
	}
}

func TestNewsletterServiceRejectsUndeliverableAddresses(t *testing.T) {
	t.Parallel()

	addresses := []string{
		"john doe@example.com",
		"@",
		"a@b@c",
		"Reader <reader@example.com>",
		"reader@",
	}

	for _, address := range addresses {
		address := address
		t.Run(address, func(t *testing.T) {
			t.Parallel()

			msg := mail.Message{To: address, Subject: "Welcome", Text: "hello"}
			if err := msg.Validate(); err == nil {
				t.Fatalf("mailer accepted %q", address)
			}

			upserted := false
			repo := &fakeSubscriberRepo{
				upsertFn: func(ctx context.Context, email string) (*domain.Subscriber, error) {
					upserted = true
					return &domain.Subscriber{ID: "sub-1", Email: email, IsActive: true}, nil
				},
			}
			svc, err := NewNewsletterService(repo, &fakeSettingsRepo{settings: testSettings()}, nil, zap.NewNop())
			if err != nil {
				t.Fatalf("NewNewsletterService() error = %v", err)
			}

			if _, err := svc.Subscribe(context.Background(), SubscribeInput{Email: address}); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Subscribe(%q) error = %v, want ErrValidation", address, err)
			}
			if upserted {
				t.Fatalf("undeliverable address %q must not be saved", address)
			}
		})
	}
}

func TestNewsletterServiceUnsubscribe(t *testing.T) {
	t.Parallel()

	var removed string
	subscribers := &fakeSubscriberRepo{
		unsubscribeFn: func(ctx context.Context, email string) error {
			removed = email
			return nil
		},
	}

	svc, err := NewNewsletterService(subscribers, &fakeSettingsRepo{settings: testSettings()}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNewsletterService() error = %v", err)
	}

	if err := svc.Unsubscribe(context.Background(), "Reader@example.com"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if removed != "reader@example.com" {
		t.Fatalf("unsubscribed %q, want reader@example.com", removed)
	}
}
