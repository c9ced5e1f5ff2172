package service

import (
	"context"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/mail"
	"github.com/kursadbilgin/donation-engine/internal/p24"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	"github.com/kursadbilgin/donation-engine/internal/queue"
	"github.com/kursadbilgin/donation-engine/internal/repository"
)

type fakeDonationRepo struct {
	createFn         func(ctx context.Context, d *domain.Donation) error
	getBySessionIDFn func(ctx context.Context, sessionID string) (*domain.Donation, error)
	listFn           func(ctx context.Context, params repository.DonationListParams) ([]domain.Donation, int64, error)
	markCompletedFn  func(ctx context.Context, sessionID string, orderID int64) error
	markFailedFn     func(ctx context.Context, sessionID string, orderID *int64) error
}

func (f *fakeDonationRepo) Create(ctx context.Context, d *domain.Donation) error {
	if f.createFn != nil {
		return f.createFn(ctx, d)
	}
	return nil
}

func (f *fakeDonationRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Donation, error) {
	if f.getBySessionIDFn != nil {
		return f.getBySessionIDFn(ctx, sessionID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDonationRepo) List(ctx context.Context, params repository.DonationListParams) ([]domain.Donation, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeDonationRepo) MarkCompleted(ctx context.Context, sessionID string, orderID int64) error {
	if f.markCompletedFn != nil {
		return f.markCompletedFn(ctx, sessionID, orderID)
	}
	return nil
}

func (f *fakeDonationRepo) MarkFailed(ctx context.Context, sessionID string, orderID *int64) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, sessionID, orderID)
	}
	return nil
}

type fakeSubscriberRepo struct {
	upsertFn         func(ctx context.Context, email string) (*domain.Subscriber, error)
	unsubscribeFn    func(ctx context.Context, email string) error
	listDueForStepFn func(ctx context.Context, target domain.DripStep, createdBefore time.Time, limit int) ([]domain.Subscriber, error)
	advanceStepFn    func(ctx context.Context, id string, from domain.DripStep, to domain.DripStep) error
}

func (f *fakeSubscriberRepo) Upsert(ctx context.Context, email string) (*domain.Subscriber, error) {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, email)
	}
	return &domain.Subscriber{ID: "sub-1", Email: email, IsActive: true}, nil
}

func (f *fakeSubscriberRepo) Unsubscribe(ctx context.Context, email string) error {
	if f.unsubscribeFn != nil {
		return f.unsubscribeFn(ctx, email)
	}
	return nil
}

func (f *fakeSubscriberRepo) ListDueForStep(ctx context.Context, target domain.DripStep, createdBefore time.Time, limit int) ([]domain.Subscriber, error) {
	if f.listDueForStepFn != nil {
		return f.listDueForStepFn(ctx, target, createdBefore, limit)
	}
	return nil, nil
}

func (f *fakeSubscriberRepo) AdvanceStep(ctx context.Context, id string, from domain.DripStep, to domain.DripStep) error {
	if f.advanceStepFn != nil {
		return f.advanceStepFn(ctx, id, from, to)
	}
	return nil
}

type fakeSettingsRepo struct {
	settings       *domain.Settings
	loadFn         func(ctx context.Context) (*domain.Settings, error)
	saveFn         func(ctx context.Context, settings *domain.Settings) error
	claimDripRunFn func(ctx context.Context, now time.Time, interval time.Duration) (bool, error)
}

func (f *fakeSettingsRepo) Load(ctx context.Context) (*domain.Settings, error) {
	if f.loadFn != nil {
		return f.loadFn(ctx)
	}
	if f.settings == nil {
		return nil, domain.ErrConfigMissing
	}
	copied := *f.settings
	return &copied, nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, settings *domain.Settings) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, settings)
	}
	copied := *settings
	f.settings = &copied
	return nil
}

// ClaimDripRun mimics the conditional update on last_drip_run.
func (f *fakeSettingsRepo) ClaimDripRun(ctx context.Context, now time.Time, interval time.Duration) (bool, error) {
	if f.claimDripRunFn != nil {
		return f.claimDripRunFn(ctx, now, interval)
	}
	if f.settings == nil {
		return false, domain.ErrConfigMissing
	}
	last := f.settings.Drip.LastRunAt
	if last != nil && last.After(now.Add(-interval)) {
		return false, nil
	}
	claimedAt := now
	f.settings.Drip.LastRunAt = &claimedAt
	return true, nil
}

type fakeAuditRepo struct {
	entries []domain.PaymentNotification
}

func (f *fakeAuditRepo) Create(ctx context.Context, n *domain.PaymentNotification) error {
	f.entries = append(f.entries, *n)
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, event queue.DonationEvent) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, event queue.DonationEvent) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, event)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}

type fakeGateway struct {
	registerFn       func(ctx context.Context, req p24.RegisterRequest) (*p24.Registration, error)
	verifyFn         func(ctx context.Context, req p24.VerifyRequest) (bool, error)
	testConnectionFn func(ctx context.Context) error
}

func (f *fakeGateway) Register(ctx context.Context, req p24.RegisterRequest) (*p24.Registration, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, req)
	}
	return &p24.Registration{Token: "TOKEN", PaymentURL: p24.SandboxBaseURL + "/trnRequest/TOKEN"}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, req p24.VerifyRequest) (bool, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, req)
	}
	return true, nil
}

func (f *fakeGateway) TestConnection(ctx context.Context) error {
	if f.testConnectionFn != nil {
		return f.testConnectionFn(ctx)
	}
	return nil
}

// gatewayFactoryFor returns a factory that records the merchant config it
// was asked to bind.
func gatewayFactoryFor(gateway PaymentGateway, bound *domain.MerchantConfig) GatewayFactory {
	return func(cfg domain.MerchantConfig) (PaymentGateway, error) {
		if bound != nil {
			*bound = cfg
		}
		return gateway, nil
	}
}

type fakeMailer struct {
	sent   []mail.Message
	sendFn func(ctx context.Context, settings domain.EmailSettings, msg mail.Message) error
}

func (f *fakeMailer) Send(ctx context.Context, settings domain.EmailSettings, msg mail.Message) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, settings, msg); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeDiscord struct {
	messages []string
	notifyFn func(ctx context.Context, webhookURL string, content string) error
}

func (f *fakeDiscord) Notify(ctx context.Context, webhookURL string, content string) error {
	if f.notifyFn != nil {
		if err := f.notifyFn(ctx, webhookURL, content); err != nil {
			return err
		}
	}
	f.messages = append(f.messages, content)
	return nil
}

type fakeCaptcha struct {
	assessFn func(ctx context.Context, settings domain.RecaptchaSettings, token string, expectedAction string) (*provider.Assessment, error)
}

func (f *fakeCaptcha) Assess(ctx context.Context, settings domain.RecaptchaSettings, token string, expectedAction string) (*provider.Assessment, error) {
	if f.assessFn != nil {
		return f.assessFn(ctx, settings, token, expectedAction)
	}
	return &provider.Assessment{Valid: true, Action: expectedAction, Score: 0.9}, nil
}

func testSettings() *domain.Settings {
	return &domain.Settings{
		Merchant: domain.MerchantConfig{
			MerchantID: 12345,
			APIKey:     "apikey",
			CRC:        "SECRET",
			Sandbox:    true,
		},
		Email: domain.EmailSettings{
			Provider:     domain.EmailProviderResend,
			FromAddress:  "hello@association.test",
			ResendAPIKey: "re_key",
		},
		Drip: domain.DripSettings{
			Enabled:     true,
			FirstDelay:  domain.DefaultDripFirstDelay,
			SecondDelay: domain.DefaultDripSecondDelay,
		},
	}
}
