package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"medigo/internal/lifecycle"
	"medigo/internal/logger"
	"medigo/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// statusFor maps service and lifecycle errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrMixedPharmacies),
		errors.Is(err, lifecycle.ErrTerminal),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrUnknownStatus):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden), errors.Is(err, lifecycle.ErrRoleNotPermitted):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal errors are
// logged and their details withheld.
func respondError(c *fiber.Ctx, message string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.FromCtx(c.UserContext()).Error(message, zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"message": message,
			"error":   "internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		// drop the top-level struct name: "items[0].quantity"
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		errorMessages[field] = fieldMessage(e)
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "gte", "gt", "lte", "ltefield":
		return fmt.Sprintf("%s is out of range", e.Field())
	}
	return fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
}

// bind parses the request body into dst and validates it. A non-nil
// error has already been written to the response.
func bind(c *fiber.Ctx, v *validator.Validate, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := v.Struct(dst); err != nil {
		return false, validationFailed(c, err)
	}
	return true, nil
}

func pagination(c *fiber.Ctx) services.Pagination {
	return services.Pagination{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", services.DefaultPageLimit)}
}

func paginated[T any](c *fiber.Ctx, page *services.Page[T]) error {
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(page.Items),
		"data":    page.Items,
		"pagination": fiber.Map{
			"total": page.Total,
			"page":  page.Page,
			"pages": page.Pages,
		},
	})
}
