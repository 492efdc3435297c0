package server

import (
	"eslive/internal/mirror"
	"eslive/internal/models"
	"eslive/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	uid := currentUID(c)

	rec, err := s.session.Record(c.Context(), uid)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(rec)
}

// UpdateMyProfile handles PUT /api/users/me. Only username and profile
// image are editable; role, email and the bookkeeping stamps are not
// client-writable.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	uid := currentUID(c)

	var req struct {
		Username     *string `json:"username"`
		ProfileImage *string `json:"profileImage"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Username != nil {
		if err := validation.ValidateUsername(*req.Username); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(err.Error()))
		}
	}

	rec, err := s.session.SaveProfile(c.Context(), uid, mirror.ProfileUpdate{
		Username:     req.Username,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		return respondAppError(c, err)
	}

	// Tell the user's other sessions about the edit.
	if s.notifier != nil {
		_ = s.notifier.PublishUser(c.Context(), uid, `{"type":"profile_updated"}`)
	}

	return c.JSON(rec)
}

// RefreshMyProfile handles POST /api/users/me/refresh. It re-reads the
// profile record straight from the store so out-of-band edits, such as
// a role change, show up without waiting for a new login.
func (s *Server) RefreshMyProfile(c *fiber.Ctx) error {
	uid := currentUID(c)

	rec, err := s.session.RefreshRecord(c.Context(), uid)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(rec)
}

// GetViewerCount handles GET /api/viewers
func (s *Server) GetViewerCount(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"viewers": s.hub.Presence().ViewerCount(c.Context()),
	})
}
