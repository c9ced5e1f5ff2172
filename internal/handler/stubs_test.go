package handler

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/ratelimit"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"github.com/kursadbilgin/donation-engine/internal/service"
	"github.com/kursadbilgin/donation-engine/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type stubDonationService struct {
	initiateFn       func(ctx context.Context, in service.InitiateDonationInput) (*service.DonationRedirect, error)
	getBySessionIDFn func(ctx context.Context, sessionID string) (*domain.Donation, error)
	listFn           func(ctx context.Context, params repository.DonationListParams) ([]domain.Donation, int64, error)
}

func (s *stubDonationService) Initiate(ctx context.Context, in service.InitiateDonationInput) (*service.DonationRedirect, error) {
	if s.initiateFn != nil {
		return s.initiateFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (s *stubDonationService) GetBySessionID(ctx context.Context, sessionID string) (*domain.Donation, error) {
	if s.getBySessionIDFn != nil {
		return s.getBySessionIDFn(ctx, sessionID)
	}
	return nil, domain.ErrNotFound
}

func (s *stubDonationService) List(ctx context.Context, params repository.DonationListParams) ([]domain.Donation, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, 0, nil
}

type stubPaymentService struct {
	handleFn func(ctx context.Context, n service.PaymentNotification) (domain.NotificationOutcome, error)
}

func (s *stubPaymentService) Handle(ctx context.Context, n service.PaymentNotification) (domain.NotificationOutcome, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, n)
	}
	return domain.NotificationOutcomeVerified, nil
}

type stubNewsletterService struct {
	subscribeFn   func(ctx context.Context, in service.SubscribeInput) (*domain.Subscriber, error)
	unsubscribeFn func(ctx context.Context, email string) error
}

func (s *stubNewsletterService) Subscribe(ctx context.Context, in service.SubscribeInput) (*domain.Subscriber, error) {
	if s.subscribeFn != nil {
		return s.subscribeFn(ctx, in)
	}
	return &domain.Subscriber{ID: "sub-1", Email: in.Email, IsActive: true}, nil
}

func (s *stubNewsletterService) Unsubscribe(ctx context.Context, email string) error {
	if s.unsubscribeFn != nil {
		return s.unsubscribeFn(ctx, email)
	}
	return nil
}

type stubDripRunner struct {
	runFn func(ctx context.Context) (*service.DripRunResult, error)
}

func (s *stubDripRunner) Run(ctx context.Context) (*service.DripRunResult, error) {
	if s.runFn != nil {
		return s.runFn(ctx)
	}
	return &service.DripRunResult{Status: service.DripRunCompleted}, nil
}

type stubSettingsService struct {
	settings         *domain.Settings
	updateFn         func(ctx context.Context, update domain.Settings) (*domain.Settings, error)
	testConnectionFn func(ctx context.Context) error
}

func (s *stubSettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	if s.settings == nil {
		return nil, domain.ErrConfigMissing
	}
	return s.settings, nil
}

func (s *stubSettingsService) Update(ctx context.Context, update domain.Settings) (*domain.Settings, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, update)
	}
	return &update, nil
}

func (s *stubSettingsService) TestPaymentConnection(ctx context.Context) error {
	if s.testConnectionFn != nil {
		return s.testConnectionFn(ctx)
	}
	return nil
}

type stubLimiter struct {
	allowFn func(ctx context.Context, key string) (ratelimit.Decision, error)
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	if s.allowFn != nil {
		return s.allowFn(ctx, key)
	}
	return ratelimit.Decision{Allowed: true}, nil
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()
	return performRequestWithHeaders(t, app, method, path, body, nil)
}

func performRequestWithHeaders(t *testing.T, app *fiber.App, method string, path string, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}

type stubBroker struct {
	err error
}

func (b stubBroker) Ping() error { return b.err }
