package serverutils

import (
	"errors"

	"devotion-guide-be/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorRule maps a sentinel (matched with errors.Is) to an HTTP status.
type ErrorRule struct {
	Target error
	Status int
}

// NewErrorHandler turns handler errors into the response envelope. Rules are
// checked in order; unmatched errors become 500 and are logged.
func NewErrorHandler(log logger.ILogger, rules ...ErrorRule) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		status, message := classify(err, rules)
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": status,
				"error":  err.Error(),
			})
		}
		return ctx.Status(status).JSON(ErrorResponse(status, message))
	}
}

// ErrorHandlerMiddleware applies the handler to errors returned further down
// the chain, so routes registered after it share one error format.
func ErrorHandlerMiddleware(log logger.ILogger, rules ...ErrorRule) fiber.Handler {
	handle := NewErrorHandler(log, rules...)
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return handle(ctx, err)
		}
		return nil
	}
}

func classify(err error, rules []ErrorRule) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fiber.StatusBadRequest, describeValidation(validationErrs)
	}
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			return rule.Status, err.Error()
		}
	}
	return fiber.StatusInternalServerError, "internal server error"
}
