package server

import (
	"eslive/internal/display"
	"eslive/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetSettings handles GET /api/settings. The mirror's local copy is
// always fully defaulted, so this never returns partial documents.
func (s *Server) GetSettings(c *fiber.Ctx) error {
	return c.JSON(s.settings.Current())
}

// UpdateSettings handles PUT /api/settings. The document is replaced
// wholesale; concurrent admin saves resolve by last write.
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	var req models.Settings
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.settings.Save(c.Context(), req); err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(s.settings.Current())
}

// GetDisplayState handles GET /api/settings/display. It reports which
// surface the front page should show for the current settings.
func (s *Server) GetDisplayState(c *fiber.Ctx) error {
	current := s.settings.Current()
	return c.JSON(fiber.Map{
		"state":    display.Select(current),
		"siteName": siteName(current, s.config.SiteName),
	})
}

// siteName prefers the admin-configured name over the deployment default.
func siteName(settings models.Settings, fallback string) string {
	if settings.SiteName != "" {
		return settings.SiteName
	}
	return fallback
}
