package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eslive/internal/models"
	"eslive/internal/store"
)

func TestGetMyProfile(t *testing.T) {
	s, gw := newTestServer(t)
	seedUserRecord(t, gw, models.UserRecord{
		UID: "u1", Email: "a@b.c", Username: "alice", Role: models.RoleUser,
	})

	app := fiber.New()
	app.Get("/users/me", asUser("u1"), s.GetMyProfile)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.UserRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "u1", rec.UID)
	assert.Equal(t, "alice", rec.Username)
}

func TestGetMyProfileUnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	app := fiber.New()
	app.Get("/users/me", asUser("ghost"), s.GetMyProfile)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateMyProfileMergesNamedFieldsOnly(t *testing.T) {
	s, gw := newTestServer(t)
	seedUserRecord(t, gw, models.UserRecord{
		UID: "u1", Email: "a@b.c", Username: "alice",
		Role: models.RoleAdmin, ProfileImage: "old.png",
	})

	app := fiber.New()
	app.Put("/users/me", asUser("u1"), s.UpdateMyProfile)

	body, _ := json.Marshal(fiber.Map{"username": "alice2"})
	req := httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec, err := s.session.Record(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", rec.Username)
	assert.Equal(t, "old.png", rec.ProfileImage)
	// Profile edits never touch the role.
	assert.Equal(t, models.RoleAdmin, rec.Role)
}

func TestUpdateMyProfileRejectsBadUsername(t *testing.T) {
	s, gw := newTestServer(t)
	seedUserRecord(t, gw, models.UserRecord{UID: "u1", Username: "alice"})

	app := fiber.New()
	app.Put("/users/me", asUser("u1"), s.UpdateMyProfile)

	for _, name := range []string{"", "   ", strings.Repeat("x", 33)} {
		body, _ := json.Marshal(fiber.Map{"username": name})
		req := httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
	}

	rec, err := s.session.Record(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)
}

func TestRefreshMyProfileSeesOutOfBandRoleChange(t *testing.T) {
	s, gw := newTestServer(t)
	seedUserRecord(t, gw, models.UserRecord{
		UID: "u1", Email: "a@b.c", Username: "alice", Role: models.RoleUser,
	})

	app := fiber.New()
	app.Post("/users/me/refresh", asUser("u1"), s.RefreshMyProfile)

	// Promote behind the mirror's back.
	seedUserRecord(t, gw, models.UserRecord{
		UID: "u1", Email: "a@b.c", Username: "alice", Role: models.RoleAdmin,
	})

	req := httptest.NewRequest(http.MethodPost, "/users/me/refresh", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.UserRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, models.RoleAdmin, rec.Role)
}

func TestRefreshMyProfileUnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	app := fiber.New()
	app.Post("/users/me/refresh", asUser("ghost"), s.RefreshMyProfile)

	req := httptest.NewRequest(http.MethodPost, "/users/me/refresh", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutSiteImageRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	app := fiber.New()
	app.Put("/images/:name", s.PutSiteImage)
	app.Get("/images/:name", s.GetSiteImage)

	body, _ := json.Marshal(fiber.Map{
		"data": "data:image/png;base64,iVBORw0KGgo=",
		"type": "image/png",
	})
	req := httptest.NewRequest(http.MethodPut, "/images/banner", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/images/banner", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var img models.ImageRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&img))
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", img.Data)
	assert.Equal(t, "image/png", img.Type)
	assert.NotZero(t, img.Timestamp)
}

func TestPutSiteImageRejectsBadInput(t *testing.T) {
	s, gw := newTestServer(t)

	app := fiber.New()
	app.Put("/images/:name", s.PutSiteImage)

	cases := []struct {
		name    string
		path    string
		payload fiber.Map
		status  int
	}{
		{"bad name", "/images/..%2Fescape", fiber.Map{"data": "data:image/png;base64,x"}, http.StatusBadRequest},
		{"missing data", "/images/banner", fiber.Map{"type": "image/png"}, http.StatusBadRequest},
		{"not a data URL", "/images/banner", fiber.Map{"data": "https://cdn/x.png"}, http.StatusBadRequest},
		{"oversized", "/images/banner", fiber.Map{
			"data": "data:image/png;base64," + strings.Repeat("A", models.MaxInlineImageBytes*4/3),
		}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.payload)
			req := httptest.NewRequest(http.MethodPut, tc.path, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	_, ok, err := gw.Read(context.Background(), store.ChildPath(store.PathSiteImages, "banner"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetSiteImageNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	app := fiber.New()
	app.Get("/images/:name", s.GetSiteImage)

	req := httptest.NewRequest(http.MethodGet, "/images/missing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
