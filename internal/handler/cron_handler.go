package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/service"
)

type DripRunner interface {
	Run(ctx context.Context) (*service.DripRunResult, error)
}

type CronHandler struct {
	drip   DripRunner
	secret string
}

// RegisterCronRoutes mounts endpoints for an external scheduler. An empty
// secret rejects every call.
func RegisterCronRoutes(router fiber.Router, drip DripRunner, secret string) error {
	if drip == nil {
		return fmt.Errorf("drip runner is required")
	}
	h := &CronHandler{drip: drip, secret: strings.TrimSpace(secret)}

	router.Group("/v1/cron", h.authorize).Post("/drip", h.RunDrip)
	return nil
}

type dripStepResponse struct {
	Step   int `json:"step"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type dripRunResponse struct {
	Status    string             `json:"status"`
	Processed int                `json:"processed"`
	Steps     []dripStepResponse `json:"steps"`
}

func (h *CronHandler) RunDrip(c *fiber.Ctx) error {
	result, err := h.drip.Run(c.UserContext())
	if err != nil {
		return err
	}

	steps := make([]dripStepResponse, 0, len(result.Steps))
	for _, step := range result.Steps {
		steps = append(steps, dripStepResponse{
			Step:   int(step.Step),
			Sent:   step.Sent,
			Failed: step.Failed,
		})
	}

	return c.Status(fiber.StatusOK).JSON(dripRunResponse{
		Status:    string(result.Status),
		Processed: result.Processed(),
		Steps:     steps,
	})
}

func (h *CronHandler) authorize(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || h.secret == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.secret)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Next()
}
