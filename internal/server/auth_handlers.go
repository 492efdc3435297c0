package server

import (
	"errors"
	"time"

	"eslive/internal/identity"
	"eslive/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// oauthStateTTL bounds how long an OAuth consent round trip may take.
const oauthStateTTL = 10 * time.Minute

// AuthResponse is the API response after a successful sign-in or signup.
type AuthResponse struct {
	Token string            `json:"token"`
	User  models.UserRecord `json:"user"`
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	principal, token, err := s.identity.SignUp(c.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		return respondAuthError(c, err)
	}

	rec, err := s.session.EnsureRecord(c.Context(), *principal)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: rec})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	principal, token, err := s.identity.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return respondAuthError(c, err)
	}

	rec, err := s.session.EnsureRecord(c.Context(), *principal)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(AuthResponse{Token: token, User: rec})
}

// ResetPassword handles POST /api/auth/reset-password. The response is
// the same whether or not the account exists, except for validation
// failures, so the endpoint cannot be probed for registered addresses.
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.identity.SendPasswordReset(c.Context(), req.Email); err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) && authErr.Code == identity.CodeInvalidEmail {
			return respondAuthError(c, err)
		}
		// Swallow user-not-found and transient failures.
	}

	return c.JSON(fiber.Map{
		"message": "If an account exists for that address, a reset link has been issued.",
	})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	uid := currentUID(c)
	if err := s.identity.SignOut(c.Context(), uid); err != nil {
		return respondAuthError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Signed out"})
}

// OAuthBegin handles GET /api/auth/oauth/:provider. It returns the
// provider consent URL; the client performs the redirect.
func (s *Server) OAuthBegin(c *fiber.Ctx) error {
	provider := c.Params("provider")
	cfg, err := s.federated.Config(provider)
	if err != nil {
		return respondAuthError(c, err)
	}

	state := uuid.NewString()
	if s.redis != nil {
		if err := s.redis.SetEx(c.Context(), "oauth_state:"+state, provider, oauthStateTTL).Err(); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
	}

	return c.JSON(fiber.Map{
		"url":   cfg.AuthCodeURL(state),
		"state": state,
	})
}

// OAuthCallback handles GET /api/auth/oauth/:provider/callback
func (s *Server) OAuthCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Missing authorization code"))
	}

	// The state check is skipped when Redis is unavailable; the exchange
	// below still fails for forged codes.
	if s.redis != nil {
		stored, err := s.redis.GetDel(c.Context(), "oauth_state:"+state).Result()
		if err != nil || stored != provider {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired OAuth state"))
		}
	}

	principal, token, err := s.federated.SignIn(c.Context(), provider, code)
	if err != nil {
		return respondAuthError(c, err)
	}

	rec, err := s.session.EnsureRecord(c.Context(), *principal)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(AuthResponse{Token: token, User: rec})
}
