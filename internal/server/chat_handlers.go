package server

import (
	"strings"

	"eslive/internal/models"
	"eslive/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// maxChatMessageLength caps a single chat message.
const maxChatMessageLength = 500

// GetChatMessages handles GET /api/chat/messages. The list is the
// mirror's local copy, sorted oldest first.
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	return c.JSON(s.chat.Messages())
}

// SendChatMessage handles POST /api/chat/messages. The response carries
// the stored message; it becomes visible in GET once the subscription
// round trip delivers it.
func (s *Server) SendChatMessage(c *fiber.Ctx) error {
	uid := currentUID(c)

	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Message cannot be empty"))
	}
	if len(text) > maxChatMessageLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Message is too long"))
	}

	rec, err := s.session.Record(c.Context(), uid)
	if err != nil {
		return respondAppError(c, err)
	}

	msg := models.NewChatMessage(uid, rec.Username, text, rec.ProfileImage)
	if err := s.chat.Add(c.Context(), msg); err != nil {
		observability.ChatMessagesTotal.WithLabelValues("failed").Inc()
		return respondAppError(c, err)
	}

	observability.ChatMessagesTotal.WithLabelValues("sent").Inc()
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// DeleteChatMessage handles DELETE /api/chat/messages/:id. Only the
// author may delete; the check is against the message's stored author
// UID, never its display name.
func (s *Server) DeleteChatMessage(c *fiber.Ctx) error {
	uid := currentUID(c)
	id := c.Params("id")
	if id == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid message ID"))
	}

	if err := s.chat.Delete(c.Context(), id, uid); err != nil {
		observability.ChatMessagesTotal.WithLabelValues("delete_rejected").Inc()
		return respondAppError(c, err)
	}

	observability.ChatMessagesTotal.WithLabelValues("deleted").Inc()
	return c.JSON(fiber.Map{"message": "Message deleted"})
}

// ClearChatMessages handles DELETE /api/chat/messages (admin only).
func (s *Server) ClearChatMessages(c *fiber.Ctx) error {
	if err := s.chat.ClearAll(c.Context()); err != nil {
		return respondAppError(c, err)
	}
	observability.ChatMessagesTotal.WithLabelValues("cleared").Inc()
	return c.JSON(fiber.Map{"message": "Chat cleared"})
}
