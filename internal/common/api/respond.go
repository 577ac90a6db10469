package api

import (
	"errors"

	"go-lms/internal/common/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// StatusFor maps an error kind to the HTTP status the admin API answers with.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindConflict:
		return fiber.StatusConflict
	case apperrors.KindPartialBatch:
		return fiber.StatusMultiStatus
	case apperrors.KindPhysicalIO:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Error writes err as a JSON body with the matching status.
func Error(c *fiber.Ctx, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return c.Status(StatusFor(appErr.Kind)).JSON(fiber.Map{
			"error":   appErr.Error(),
			"kind":    appErr.Kind,
			"details": appErr.Details,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// ParseBody decodes the request body into dst and runs struct tag validation on it.
func ParseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.Validation("invalid request body: %v", err)
	}
	return ValidateStruct(dst)
}

func ValidateStruct(dst any) error {
	if err := validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			return apperrors.Validation("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return apperrors.Validation("%v", err)
	}
	return nil
}
