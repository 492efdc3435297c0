package server

import (
	"regexp"
	"strings"
	"time"

	"eslive/internal/models"
	"eslive/internal/store"

	"github.com/gofiber/fiber/v2"
)

// imageNamePattern keeps image keys safe as store path segments.
var imageNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// GetSiteImage handles GET /api/images/:name
func (s *Server) GetSiteImage(c *fiber.Ctx) error {
	name := c.Params("name")
	if !imageNamePattern.MatchString(name) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid image name"))
	}

	value, ok, err := s.gateway.Read(c.Context(), store.ChildPath(store.PathSiteImages, name))
	if err != nil {
		return respondAppError(c, models.NewStoreError(err))
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("image", name))
	}

	raw, _ := value.(map[string]any)
	return c.JSON(models.ImageRecordFromMap(raw))
}

// PutSiteImage handles PUT /api/images/:name (admin only). Images are
// stored inline as base64 data URLs; there is no object storage.
func (s *Server) PutSiteImage(c *fiber.Ctx) error {
	name := c.Params("name")
	if !imageNamePattern.MatchString(name) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid image name"))
	}

	var req struct {
		Data string `json:"data"`
		Type string `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Data == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Image data is required"))
	}
	if !strings.HasPrefix(req.Data, "data:image/") {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Image data must be a data URL"))
	}
	// Base64 inflates by 4/3; compare against the encoded budget.
	if len(req.Data) > models.MaxInlineImageBytes*4/3 {
		return models.RespondWithError(c, fiber.StatusRequestEntityTooLarge,
			models.NewValidationError("Image exceeds the inline size limit"))
	}

	img := models.ImageRecord{
		Data:      req.Data,
		Timestamp: time.Now().UnixMilli(),
		Type:      req.Type,
	}
	if err := s.gateway.Write(c.Context(), store.ChildPath(store.PathSiteImages, name), img.ToMap()); err != nil {
		return respondAppError(c, models.NewStoreError(err))
	}

	return c.JSON(img)
}
