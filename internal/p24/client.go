package p24

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	"go.uber.org/zap"
)

const (
	SandboxBaseURL    = "https://sandbox.przelewy24.pl"
	ProductionBaseURL = "https://secure.przelewy24.pl"

	providerName        = "przelewy24"
	verifySuccessStatus = "success"

	defaultCountry  = "PL"
	defaultLanguage = "pl"

	maxVerifyAttempts = 3
	verifyRetryDelay  = 500 * time.Millisecond
)

// BaseURL selects the API host for an environment.
func BaseURL(sandbox bool) string {
	if sandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

type RegisterRequest struct {
	SessionID   string
	Amount      int64
	Currency    string
	Description string
	Email       string
	Country     string
	Language    string
	URLReturn   string
	URLStatus   string
}

type VerifyRequest struct {
	SessionID string
	OrderID   int64
	Amount    int64
	Currency  string
}

// Registration is a successfully registered transaction.
type Registration struct {
	Token      string
	PaymentURL string
}

type registerBody struct {
	MerchantID  int    `json:"merchantId"`
	PosID       int    `json:"posId"`
	SessionID   string `json:"sessionId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Language    string `json:"language"`
	URLReturn   string `json:"urlReturn"`
	URLStatus   string `json:"urlStatus,omitempty"`
	Sign        string `json:"sign"`
}

type registerResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
	ResponseCode int `json:"responseCode"`
}

type verifyBody struct {
	MerchantID int    `json:"merchantId"`
	PosID      int    `json:"posId"`
	SessionID  string `json:"sessionId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	OrderID    int64  `json:"orderId"`
	Sign       string `json:"sign"`
}

type verifyResponse struct {
	Data struct {
		Status string `json:"status"`
	} `json:"data"`
	ResponseCode int `json:"responseCode"`
}

type testConnectionResponse struct {
	Data  bool   `json:"data"`
	Error string `json:"error"`
}

// Client talks to one Przelewy24 environment with one set of credentials.
// Registration and verification through the same Client can never target
// different environments.
type Client struct {
	http    *resty.Client
	cfg     domain.MerchantConfig
	baseURL string
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg domain.MerchantConfig, httpClient *resty.Client, logger *zap.Logger) (*Client, error) {
	return NewClientWithBaseURL(cfg, BaseURL(cfg.Sandbox), httpClient, logger)
}

func NewClientWithBaseURL(cfg domain.MerchantConfig, baseURL string, httpClient *resty.Client, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("przelewy24 base url is required")
	}
	if httpClient == nil {
		httpClient = provider.NewHTTPClient(provider.DefaultTimeout)
	}
	if httpClient.GetClient().Timeout == 0 {
		httpClient.SetTimeout(provider.DefaultTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:    httpClient,
		cfg:     cfg,
		baseURL: baseURL,
		logger:  logger,
		sleep:   sleepWithContext,
	}, nil
}

func (c *Client) Sandbox() bool { return c.cfg.Sandbox }

// PaymentURL is where the payer is redirected for a registered token.
func (c *Client) PaymentURL(token string) string {
	return c.baseURL + "/trnRequest/" + token
}

// Register registers a transaction and returns the payer redirect URL.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	currency := normalizeCurrency(req.Currency)
	signature, err := RegisterSign(req.SessionID, c.cfg.MerchantID, req.Amount, currency, c.cfg.CRC)
	if err != nil {
		return nil, err
	}

	body := registerBody{
		MerchantID:  c.cfg.MerchantID,
		PosID:       c.cfg.EffectivePosID(),
		SessionID:   req.SessionID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
		Email:       strings.TrimSpace(req.Email),
		Country:     valueOrDefault(req.Country, defaultCountry),
		Language:    valueOrDefault(req.Language, defaultLanguage),
		URLReturn:   req.URLReturn,
		URLStatus:   req.URLStatus,
		Sign:        signature,
	}

	var result registerResponse
	response, err := c.request(ctx).
		SetBody(body).
		SetResult(&result).
		Post(c.baseURL + "/api/v1/transaction/register")
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, provider.UnexpectedStatus(providerName, statusCode, response.String())
	}

	token := strings.TrimSpace(result.Data.Token)
	if token == "" {
		return nil, &provider.ProviderError{
			Provider:   providerName,
			StatusCode: statusCode,
			Message:    "registration response carried no token",
		}
	}

	return &Registration{
		Token:      token,
		PaymentURL: c.PaymentURL(token),
	}, nil
}

// Verify confirms a transaction server-to-server. ok is true only for a 2xx
// response whose data.status is "success"; any error implies ok == false.
// Transient failures are retried a bounded number of times.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (bool, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return false, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	currency := normalizeCurrency(req.Currency)
	signature, err := VerifySign(req.SessionID, req.OrderID, req.Amount, currency, c.cfg.CRC)
	if err != nil {
		return false, err
	}

	body := verifyBody{
		MerchantID: c.cfg.MerchantID,
		PosID:      c.cfg.EffectivePosID(),
		SessionID:  req.SessionID,
		Amount:     req.Amount,
		Currency:   currency,
		OrderID:    req.OrderID,
		Sign:       signature,
	}

	var lastErr error
	for attempt := 1; attempt <= maxVerifyAttempts; attempt++ {
		ok, err := c.verifyOnce(ctx, body)
		if err == nil || !provider.IsTransient(err) || attempt == maxVerifyAttempts {
			return ok, err
		}
		lastErr = err

		c.logger.Warn("przelewy24 verify attempt failed, retrying",
			zap.String("sessionId", req.SessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if sleepErr := c.sleep(ctx, time.Duration(attempt)*verifyRetryDelay); sleepErr != nil {
			return false, sleepErr
		}
	}

	return false, lastErr
}

func (c *Client) verifyOnce(ctx context.Context, body verifyBody) (bool, error) {
	var result verifyResponse
	response, err := c.request(ctx).
		SetBody(body).
		SetResult(&result).
		Put(c.baseURL + "/api/v1/transaction/verify")
	if err != nil {
		return false, provider.RequestFailed(providerName, err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return false, provider.UnexpectedStatus(providerName, statusCode, response.String())
	}

	if !strings.EqualFold(strings.TrimSpace(result.Data.Status), verifySuccessStatus) {
		return false, &provider.ProviderError{
			Provider:   providerName,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("verification status %q", result.Data.Status),
		}
	}

	return true, nil
}

// TestConnection checks that the credentials are accepted by the environment.
func (c *Client) TestConnection(ctx context.Context) error {
	var result testConnectionResponse
	response, err := c.request(ctx).
		SetResult(&result).
		Get(c.baseURL + "/api/v1/testConnection")
	if err != nil {
		return provider.RequestFailed(providerName, err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return provider.UnexpectedStatus(providerName, statusCode, response.String())
	}
	if !result.Data {
		return &provider.ProviderError{
			Provider:   providerName,
			StatusCode: statusCode,
			Message:    "connection test rejected: " + result.Error,
		}
	}

	return nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetBasicAuth(strconv.Itoa(c.cfg.EffectivePosID()), c.cfg.APIKey).
		SetHeader("Content-Type", "application/json")
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return domain.DefaultCurrency
	}
	return currency
}

func valueOrDefault(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
