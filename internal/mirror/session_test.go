package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eslive/internal/identity"
	"eslive/internal/models"
	"eslive/internal/store"
)

// fakeProvider is a hand-rolled identity.Provider that lets tests fire
// auth change events directly.
type fakeProvider struct {
	listener identity.AuthChangeFunc
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*models.Principal, string, error) {
	return nil, "", nil
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, displayName string) (*models.Principal, string, error) {
	return nil, "", nil
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error { return nil }

func (f *fakeProvider) SignOut(ctx context.Context, uid string) error { return nil }

func (f *fakeProvider) Lookup(ctx context.Context, uid string) (*models.Principal, error) {
	return nil, nil
}

func (f *fakeProvider) OnAuthChange(fn identity.AuthChangeFunc) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func newSessionMirror(t *testing.T) (*SessionMirror, *fakeProvider, store.Gateway) {
	t.Helper()
	gw := store.NewMemoryStore()
	provider := &fakeProvider{}
	m := NewSessionMirror(gw, provider)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m, provider, gw
}

func TestSessionMirrorCreatesRecordOnFirstLogin(t *testing.T) {
	m, provider, gw := newSessionMirror(t)

	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	provider.listener(&models.Principal{
		UID:         "u1",
		Email:       "alice@example.com",
		DisplayName: "alice",
	})

	rec := m.Current()
	require.NotNil(t, rec)
	assert.Equal(t, "u1", rec.UID)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, models.RoleUser, rec.Role)
	assert.Equal(t, fixed.UnixMilli(), rec.CreatedAt)
	assert.Equal(t, fixed.UnixMilli(), rec.LastLogin)

	// Persisted at userData/<uid>.
	value, ok, err := gw.Read(context.Background(), store.ChildPath(store.PathUserData, "u1"))
	require.NoError(t, err)
	require.True(t, ok)
	raw, _ := value.(map[string]any)
	assert.Equal(t, "alice@example.com", raw["email"])
}

func TestSessionMirrorRefreshesLastLoginKeepsRole(t *testing.T) {
	m, provider, gw := newSessionMirror(t)

	old := models.UserRecord{
		UID:       "u1",
		Email:     "alice@example.com",
		Username:  "alice",
		Role:      models.RoleAdmin,
		CreatedAt: 1000,
		LastLogin: 1000,
	}
	require.NoError(t, gw.Write(context.Background(),
		store.ChildPath(store.PathUserData, "u1"), old.ToMap()))

	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	provider.listener(&models.Principal{UID: "u1", Email: "alice@example.com"})

	rec := m.Current()
	require.NotNil(t, rec)
	assert.Equal(t, models.RoleAdmin, rec.Role)
	assert.Equal(t, int64(1000), rec.CreatedAt)
	assert.Equal(t, fixed.UnixMilli(), rec.LastLogin)
}

func TestSessionMirrorSignOutClearsRecord(t *testing.T) {
	m, provider, _ := newSessionMirror(t)

	provider.listener(&models.Principal{UID: "u1", Email: "a@b.c"})
	require.NotNil(t, m.Current())

	provider.listener(nil)
	assert.Nil(t, m.Current())
}

func TestSessionMirrorSaveProfileMerges(t *testing.T) {
	m, provider, _ := newSessionMirror(t)

	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	provider.listener(&models.Principal{
		UID: "u1", Email: "a@b.c", DisplayName: "alice", AvatarURL: "img-a",
	})

	later := fixed.Add(time.Hour)
	m.now = func() time.Time { return later }

	name := "alice2"
	rec, err := m.SaveProfile(context.Background(), "u1", ProfileUpdate{Username: &name})
	require.NoError(t, err)

	// Only the named field changed; the rest of the document survived.
	assert.Equal(t, "alice2", rec.Username)
	assert.Equal(t, "img-a", rec.ProfileImage)
	assert.Equal(t, later.UnixMilli(), rec.LastUpdated)

	// The tracked copy follows the edit.
	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "alice2", cur.Username)
}

func TestSessionMirrorSaveProfileUnknownUser(t *testing.T) {
	m, _, _ := newSessionMirror(t)

	name := "ghost"
	_, err := m.SaveProfile(context.Background(), "missing", ProfileUpdate{Username: &name})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestSessionMirrorRefreshSeesRoleChange(t *testing.T) {
	m, provider, gw := newSessionMirror(t)

	provider.listener(&models.Principal{UID: "u1", Email: "a@b.c"})
	rec := m.Current()
	require.NotNil(t, rec)
	require.Equal(t, models.RoleUser, rec.Role)

	// Promote out of band, then refresh.
	rec.Role = models.RoleAdmin
	require.NoError(t, gw.Write(context.Background(),
		store.ChildPath(store.PathUserData, "u1"), rec.ToMap()))

	got, err := m.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsAdmin())
}

func TestSessionMirrorRefreshRecordUpdatesTrackedCopy(t *testing.T) {
	m, provider, gw := newSessionMirror(t)

	provider.listener(&models.Principal{UID: "u1", Email: "a@b.c"})
	rec := m.Current()
	require.NotNil(t, rec)
	require.Equal(t, models.RoleUser, rec.Role)

	rec.Role = models.RoleAdmin
	require.NoError(t, gw.Write(context.Background(),
		store.ChildPath(store.PathUserData, "u1"), rec.ToMap()))

	got, err := m.RefreshRecord(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())

	// The tracked copy followed without another login.
	cur := m.Current()
	require.NotNil(t, cur)
	assert.True(t, cur.IsAdmin())
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "u1", UserKey(models.Principal{UID: "u1", Email: "a@b.c"}))
	assert.Equal(t, "a_b_c", UserKey(models.Principal{Email: "a@b.c"}))
	assert.Equal(t, "x_y_z_io", UserKey(models.Principal{Email: "x.y@z.io"}))
}
