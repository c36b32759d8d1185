package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "wanderlust/internal/log"
	"wanderlust/internal/payment"
	"wanderlust/internal/pricing"
	"wanderlust/internal/services"
	"wanderlust/internal/validate"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	StatusCode int    `json:"statusCode"`
}

const genericFailure = "Something went wrong. Please try again."

func ok(c *fiber.Ctx, status int, msg string, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: msg, Data: data, StatusCode: status})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(Envelope{Success: false, Message: msg, StatusCode: status})
}

// failErr maps a service error onto an envelope. 5xx never carries the
// underlying message.
func failErr(c *fiber.Ctx, action string, err error) error {
	var fe *validate.FieldError
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		return fail(c, fiber.StatusBadRequest, "empty cart")
	case errors.As(err, &fe):
		applog.Security(c, "validation.fail", map[string]any{"field": fe.Field, "rule": fe.Rule})
		return fail(c, fiber.StatusBadRequest, fe.Error())
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return fail(c, fiber.StatusBadRequest, "discountPercentage is invalid")
	case errors.Is(err, services.ErrOrderNotFound):
		return fail(c, fiber.StatusNotFound, "order not found")
	case errors.Is(err, payment.ErrUnavailable):
		applog.Error(c, action, err, nil)
		return fail(c, fiber.StatusBadGateway, "Payment provider unavailable. Please try again.")
	}
	applog.Error(c, action, err, nil)
	return fail(c, fiber.StatusInternalServerError, genericFailure)
}

// ErrorHandler renders errors that escaped a handler as an envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return fail(c, fe.Code, fe.Message)
	}
	applog.Error(c, "server.error", err, nil)
	return fail(c, fiber.StatusInternalServerError, genericFailure)
}
