package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/service"
)

const (
	msgRegistrationFailed = "payment registration failed, please try again later"
	msgCaptchaRejected    = "captcha verification failed"
)

// toHTTPError maps domain and service errors to fiber errors. Anything it
// does not recognise is returned unchanged and becomes a generic 500.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed):
		return fiber.NewError(fiber.StatusBadGateway, msgRegistrationFailed)
	case errors.Is(err, service.ErrCaptchaRejected):
		return fiber.NewError(fiber.StatusForbidden, msgCaptchaRejected)
	default:
		return err
	}
}
