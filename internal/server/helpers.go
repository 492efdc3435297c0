package server

import (
	"errors"

	"eslive/internal/identity"
	"eslive/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondAuthError maps an identity failure to an HTTP response. The
// body carries the fixed user-facing message plus the stable code so
// clients can branch without string-matching.
func respondAuthError(c *fiber.Ctx, err error) error {
	var authErr *identity.AuthError
	if !errors.As(err, &authErr) {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	status := fiber.StatusInternalServerError
	switch authErr.Code {
	case identity.CodeInvalidEmail, identity.CodeWeakPassword:
		status = fiber.StatusBadRequest
	case identity.CodeUserNotFound, identity.CodeWrongPassword:
		status = fiber.StatusUnauthorized
	case identity.CodeUserDisabled, identity.CodeOperationNotAllowed:
		status = fiber.StatusForbidden
	case identity.CodeEmailAlreadyInUse:
		status = fiber.StatusConflict
	case identity.CodeTooManyRequests:
		status = fiber.StatusTooManyRequests
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error: authErr.Message(),
		Code:  string(authErr.Code),
	})
}

// respondAppError maps an application error to an HTTP response.
func respondAppError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	status := fiber.StatusInternalServerError
	switch appErr.Code {
	case "NOT_FOUND":
		status = fiber.StatusNotFound
	case "VALIDATION_ERROR":
		status = fiber.StatusBadRequest
	case "UNAUTHORIZED":
		status = fiber.StatusUnauthorized
	case "FORBIDDEN":
		status = fiber.StatusForbidden
	case "STORE_ERROR":
		status = fiber.StatusBadGateway
	}

	return models.RespondWithError(c, status, appErr)
}

// currentUID returns the authenticated UID placed by the auth middleware.
func currentUID(c *fiber.Ctx) string {
	uid, _ := c.Locals("uid").(string)
	return uid
}
