package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/service"
)

type PaymentNotificationService interface {
	Handle(ctx context.Context, n service.PaymentNotification) (domain.NotificationOutcome, error)
}

type PaymentHandler struct {
	service PaymentNotificationService
}

func RegisterPaymentRoutes(router fiber.Router, service PaymentNotificationService) error {
	if service == nil {
		return fmt.Errorf("payment notification service is required")
	}
	h := &PaymentHandler{service: service}

	router.Group("/v1/payments").Post("/p24/notify", h.Notify)
	return nil
}

// p24NotificationRequest is the Przelewy24 status callback. Fields the
// service does not use (methodId, statement, originAmount) are kept in the
// raw payload for the audit log.
type p24NotificationRequest struct {
	MerchantID int    `json:"merchantId"`
	PosID      int    `json:"posId"`
	SessionID  string `json:"sessionId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	OrderID    int64  `json:"orderId"`
	Sign       string `json:"sign"`
}

// Notify acknowledges every notification it could process, including ones
// for unknown sessions, so the provider stops redelivering them.
func (h *PaymentHandler) Notify(c *fiber.Ctx) error {
	body := c.Body()

	var req p24NotificationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification payload")
	}

	raw := make([]byte, len(body))
	copy(raw, body)

	_, err := h.service.Handle(c.UserContext(), service.PaymentNotification{
		MerchantID: req.MerchantID,
		PosID:      req.PosID,
		SessionID:  strings.TrimSpace(req.SessionID),
		Amount:     req.Amount,
		Currency:   req.Currency,
		OrderID:    req.OrderID,
		Sign:       req.Sign,
		Raw:        raw,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "OK"})
}
