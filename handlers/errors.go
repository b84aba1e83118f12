// handlers/errors.go
package handlers

import (
	"errors"

	"challenge-ledger/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrAlreadyActive),
		errors.Is(err, services.ErrAlreadyCompleted),
		errors.Is(err, services.ErrBetClosed):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrNoStake):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrSecurityViolation):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrPaymentGateway):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error": "internal error",
			"code":  services.ErrorClass(err),
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  services.ErrorClass(err),
	})
}

func badJSON(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid JSON",
		"cause": err.Error(),
	})
}
