package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/service"
)

type NewsletterService interface {
	Subscribe(ctx context.Context, in service.SubscribeInput) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
}

type NewsletterHandler struct {
	service NewsletterService
}

func RegisterNewsletterRoutes(router fiber.Router, service NewsletterService) error {
	if service == nil {
		return fmt.Errorf("newsletter service is required")
	}
	h := &NewsletterHandler{service: service}

	newsletter := router.Group("/v1/newsletter")
	newsletter.Post("/subscribe", h.Subscribe)
	newsletter.Post("/unsubscribe", h.Unsubscribe)

	return nil
}

type subscribeRequest struct {
	Email          string `json:"email"`
	RecaptchaToken string `json:"recaptchaToken"`
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

func (h *NewsletterHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := h.service.Subscribe(c.UserContext(), service.SubscribeInput{
		Email:          req.Email,
		RecaptchaToken: req.RecaptchaToken,
	}); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "subscribed"})
}

// Unsubscribe answers the same way whether or not the address was subscribed,
// so the endpoint cannot be used to probe the mailing list. The address may
// come from the JSON body or from the email query parameter of the link in
// every drip email.
func (h *NewsletterHandler) Unsubscribe(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		var req unsubscribeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		email = req.Email
	}

	if err := h.service.Unsubscribe(c.UserContext(), email); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "unsubscribed"})
}
