package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/ratelimit"
	"github.com/kursadbilgin/donation-engine/internal/service"
	"go.uber.org/zap"
)

type DonationService interface {
	Initiate(ctx context.Context, in service.InitiateDonationInput) (*service.DonationRedirect, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Donation, error)
}

type DonationHandler struct {
	service DonationService
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

func NewDonationHandler(service DonationService, limiter ratelimit.Limiter, logger *zap.Logger) (*DonationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("donation service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationHandler{service: service, limiter: limiter, logger: logger}, nil
}

// RegisterDonationRoutes mounts the public donation endpoints. limiter may be
// nil, which disables rate limiting.
func RegisterDonationRoutes(router fiber.Router, service DonationService, limiter ratelimit.Limiter, logger *zap.Logger) error {
	h, err := NewDonationHandler(service, limiter, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/donations", h.rateLimit, h.CreateDonation)
	v1.Get("/donations/:sessionId", h.GetDonationStatus)

	return nil
}

type createDonationRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

type createDonationResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

type donationStatusResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (h *DonationHandler) CreateDonation(c *fiber.Ctx) error {
	var req createDonationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	redirect, err := h.service.Initiate(c.UserContext(), service.InitiateDonationInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Email:       req.Email,
		Description: req.Description,
		Language:    req.Language,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createDonationResponse{
		SessionID:   redirect.SessionID,
		RedirectURL: redirect.RedirectURL,
	})
}

// GetDonationStatus backs the thank-you page, which polls until the
// provider notification has settled the donation.
func (h *DonationHandler) GetDonationStatus(c *fiber.Ctx) error {
	donation, err := h.service.GetBySessionID(c.UserContext(), strings.TrimSpace(c.Params("sessionId")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(donationStatusResponse{
		SessionID: donation.SessionID,
		Status:    donation.Status.String(),
		Amount:    donation.Amount,
		Currency:  donation.Currency,
	})
}

// rateLimit allows the request through when the limiter itself fails, so a
// Redis outage does not block donations.
func (h *DonationHandler) rateLimit(c *fiber.Ctx) error {
	if h.limiter == nil {
		return c.Next()
	}

	decision, err := h.limiter.Allow(c.UserContext(), c.IP())
	if err != nil {
		h.logger.Warn("donation rate limiter unavailable", zap.Error(err))
		return c.Next()
	}
	if !decision.Allowed {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
		return fiber.NewError(fiber.StatusTooManyRequests, "too many donation attempts, please try again later")
	}

	return c.Next()
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
