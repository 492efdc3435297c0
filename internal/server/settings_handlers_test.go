package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eslive/internal/config"
	"eslive/internal/mirror"
	"eslive/internal/models"
	"eslive/internal/store"
)

// newTestServer wires a Server over an in-memory store with started
// mirrors. No database, Redis or identity provider is attached.
func newTestServer(t *testing.T) (*Server, store.Gateway) {
	t.Helper()
	gw := store.NewMemoryStore()

	s := &Server{
		config:   &config.Config{SiteName: "ES.mn", JWTSecret: "test-secret"},
		gateway:  gw,
		settings: mirror.NewSettingsMirror(gw),
		chat:     mirror.NewChatMirror(gw, false),
		session:  mirror.NewSessionMirror(gw, nil),
	}

	ctx := context.Background()
	require.NoError(t, s.settings.Start(ctx))
	require.NoError(t, s.chat.Start(ctx))
	t.Cleanup(func() {
		s.chat.Stop()
		s.settings.Stop()
	})
	return s, gw
}

// asUser injects an authenticated UID the way the auth middleware does.
func asUser(uid string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("uid", uid)
		return c.Next()
	}
}

// seedUserRecord writes a profile record directly into the store.
func seedUserRecord(t *testing.T, gw store.Gateway, rec models.UserRecord) {
	t.Helper()
	path := store.ChildPath(store.PathUserData, rec.UID)
	require.NoError(t, gw.Write(context.Background(), path, rec.ToMap()))
}

func TestGetSettingsReturnsDefaultsBeforeFirstWrite(t *testing.T) {
	s, _ := newTestServer(t)
	app := fiber.New()
	app.Get("/settings", s.GetSettings)

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, models.DefaultSettings(), got)
}

func TestUpdateSettingsRequiresAdmin(t *testing.T) {
	s, gw := newTestServer(t)
	seedUserRecord(t, gw, models.UserRecord{UID: "u1", Role: models.RoleUser})

	app := fiber.New()
	app.Put("/settings", asUser("u1"), s.adminGate(), s.UpdateSettings)

	body, _ := json.Marshal(models.DefaultSettings())
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdateSettingsAsAdminPersists(t *testing.T) {
	s, gw := newTestServer(t)
	seedUserRecord(t, gw, models.UserRecord{UID: "admin1", Role: models.RoleAdmin})

	app := fiber.New()
	app.Put("/settings", asUser("admin1"), s.adminGate(), s.UpdateSettings)

	want := models.DefaultSettings()
	want.StreamTitle = "Grand Finals"
	want.IsStreamActive = false
	body, _ := json.Marshal(want)

	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, want, s.settings.Current())
}

func TestGetDisplayStateTracksSettings(t *testing.T) {
	s, _ := newTestServer(t)
	app := fiber.New()
	app.Get("/settings/display", s.GetDisplayState)

	adSettings := models.DefaultSettings()
	adSettings.IsAdActive = true
	adSettings.AdLink = "https://ads.example.com/spot"
	require.NoError(t, s.settings.Save(context.Background(), adSettings))

	req := httptest.NewRequest(http.MethodGet, "/settings/display", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "AD_ACTIVE")
	assert.Contains(t, string(payload), "ES.mn")
}
