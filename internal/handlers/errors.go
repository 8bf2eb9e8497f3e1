package handlers

import (
	"errors"
	"fmt"

	"shoestore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Error kinds returned in the "error" field of failure responses.
const (
	kindNotFound          = "not_found"
	kindInsufficientStock = "insufficient_stock"
	kindInvalidStatus     = "invalid_status"
	kindInvalidTransition = "invalid_transition"
	kindConflict          = "conflict"
	kindValidation        = "validation_error"
	kindInternal          = "internal_error"
)

// respondError maps a service error onto an HTTP status. Unknown errors are
// logged and reported without detail.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status, kind := fiber.StatusInternalServerError, kindInternal
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, kind = fiber.StatusNotFound, kindNotFound
	case errors.Is(err, services.ErrInsufficientStock):
		status, kind = fiber.StatusConflict, kindInsufficientStock
	case errors.Is(err, services.ErrInvalidStatus):
		status, kind = fiber.StatusBadRequest, kindInvalidStatus
	case errors.Is(err, services.ErrInvalidTransition):
		status, kind = fiber.StatusBadRequest, kindInvalidTransition
	case errors.Is(err, services.ErrValidation):
		status, kind = fiber.StatusBadRequest, kindValidation
	case errors.Is(err, services.ErrConflict):
		status, kind = fiber.StatusConflict, kindConflict
	}

	if status == fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error":   kind,
			"message": "internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   kind,
		"message": err.Error(),
	})
}

// bind parses the JSON body into dst and validates it. On failure the 400
// response has already been written and the returned error is the write result,
// so callers return bind's error when ok is false.
func bind(c *fiber.Ctx, validate *validator.Validate, dst interface{}) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   kindValidation,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   kindValidation,
				"message": err.Error(),
			})
		}
		errorMessages := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			errorMessages[e.Namespace()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   kindValidation,
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return true, nil
}
