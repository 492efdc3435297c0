package mirror

import (
	"context"
	"strings"
	"sync"
	"time"

	"eslive/internal/identity"
	"eslive/internal/models"
	"eslive/internal/observability"
	"eslive/internal/store"
)

// SessionMirror tracks the signed-in identity and keeps its profile
// record at userData/<key> in step with it. It also serves as the
// profile service for the HTTP layer: the UID-parameterized methods
// work for any user, while Current follows whichever principal the
// identity provider last reported.
type SessionMirror struct {
	gw       store.Gateway
	provider identity.Provider
	logger   *observability.MirrorLogger
	now      func() time.Time

	mu      sync.RWMutex
	current *models.UserRecord

	unlisten func()
}

// NewSessionMirror creates a stopped mirror over the gateway and
// identity provider.
func NewSessionMirror(gw store.Gateway, provider identity.Provider) *SessionMirror {
	return &SessionMirror{
		gw:       gw,
		provider: provider,
		logger:   observability.NewMirrorLogger("session"),
		now:      time.Now,
	}
}

// Start registers with the identity provider. Each sign-in fetches or
// creates the principal's record; sign-out clears the local copy.
func (m *SessionMirror) Start(ctx context.Context) error {
	m.unlisten = m.provider.OnAuthChange(func(p *models.Principal) {
		if p == nil {
			m.mu.Lock()
			m.current = nil
			m.mu.Unlock()
			return
		}
		rec, err := m.EnsureRecord(context.Background(), *p)
		if err != nil {
			m.logger.LogError(context.Background(), "auth change", err)
			return
		}
		m.mu.Lock()
		m.current = &rec
		m.mu.Unlock()
	})
	m.logger.LogLifecycle(ctx, "started", nil)
	return nil
}

// Stop releases the identity listener.
func (m *SessionMirror) Stop() {
	if m.unlisten != nil {
		m.unlisten()
		m.unlisten = nil
	}
	m.logger.LogLifecycle(context.Background(), "stopped", nil)
}

// Current returns a copy of the tracked record, or nil when signed out.
func (m *SessionMirror) Current() *models.UserRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	rec := *m.current
	return &rec
}

// EnsureRecord fetches the principal's profile record, creating it on
// first login. Existing records get a lastLogin refresh; role is never
// touched after creation, so promoting a user is a direct store edit.
func (m *SessionMirror) EnsureRecord(ctx context.Context, p models.Principal) (models.UserRecord, error) {
	key := UserKey(p)
	path := store.ChildPath(store.PathUserData, key)

	value, ok, err := m.gw.Read(ctx, path)
	if err != nil {
		return models.UserRecord{}, models.NewStoreError(err)
	}

	now := m.now().UnixMilli()
	if !ok {
		rec := models.UserRecord{
			UID:          p.UID,
			Email:        p.Email,
			Username:     p.DisplayName,
			Role:         models.RoleUser,
			ProfileImage: p.AvatarURL,
			CreatedAt:    now,
			LastLogin:    now,
			LastUpdated:  now,
		}
		if err := m.gw.Write(ctx, path, rec.ToMap()); err != nil {
			return models.UserRecord{}, models.NewStoreError(err)
		}
		return rec, nil
	}

	raw, _ := value.(map[string]any)
	rec := models.UserRecordFromMap(raw)
	rec.LastLogin = now
	if rec.UID == "" {
		rec.UID = p.UID
	}
	if err := m.gw.Write(ctx, path, rec.ToMap()); err != nil {
		return models.UserRecord{}, models.NewStoreError(err)
	}
	return rec, nil
}

// Record fetches the profile record for a UID without mutating it.
func (m *SessionMirror) Record(ctx context.Context, uid string) (models.UserRecord, error) {
	path := store.ChildPath(store.PathUserData, uid)
	value, ok, err := m.gw.Read(ctx, path)
	if err != nil {
		return models.UserRecord{}, models.NewStoreError(err)
	}
	if !ok {
		return models.UserRecord{}, models.NewNotFoundError("user", uid)
	}
	raw, _ := value.(map[string]any)
	return models.UserRecordFromMap(raw), nil
}

// ProfileUpdate is a partial profile edit; nil fields are left alone.
type ProfileUpdate struct {
	Username     *string
	ProfileImage *string
}

// SaveProfile merges the update into the stored record, stamps
// lastUpdated, and writes the full document back.
func (m *SessionMirror) SaveProfile(ctx context.Context, uid string, update ProfileUpdate) (models.UserRecord, error) {
	rec, err := m.Record(ctx, uid)
	if err != nil {
		return models.UserRecord{}, err
	}
	if update.Username != nil {
		rec.Username = *update.Username
	}
	if update.ProfileImage != nil {
		rec.ProfileImage = *update.ProfileImage
	}
	rec.LastUpdated = m.now().UnixMilli()

	path := store.ChildPath(store.PathUserData, uid)
	if err := m.gw.Write(ctx, path, rec.ToMap()); err != nil {
		m.logger.LogError(ctx, "save profile", err)
		return models.UserRecord{}, models.NewStoreError(err)
	}

	m.mu.Lock()
	if m.current != nil && m.current.UID == uid {
		m.current = &rec
	}
	m.mu.Unlock()
	return rec, nil
}

// RefreshRecord re-reads a record from the store, bypassing any local
// copy. When the record belongs to the tracked session it also replaces
// the tracked copy. Used after an out-of-band edit such as a role
// change.
func (m *SessionMirror) RefreshRecord(ctx context.Context, uid string) (models.UserRecord, error) {
	rec, err := m.Record(ctx, uid)
	if err != nil {
		return models.UserRecord{}, err
	}
	m.mu.Lock()
	if m.current != nil && m.current.UID == uid {
		m.current = &rec
	}
	m.mu.Unlock()
	return rec, nil
}

// Refresh re-reads the tracked record from the store. It is a no-op
// returning nil when no session is tracked.
func (m *SessionMirror) Refresh(ctx context.Context) (*models.UserRecord, error) {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == nil {
		return nil, nil
	}
	rec, err := m.RefreshRecord(ctx, cur.UID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// keySanitizer strips the characters the store forbids in path
// segments.
var keySanitizer = strings.NewReplacer(
	".", "_", "#", "_", "$", "_", "[", "_", "]", "_", "@", "_", "/", "_",
)

// UserKey derives the record key for a principal: the provider-issued
// UID when present, otherwise the sanitized email address.
func UserKey(p models.Principal) string {
	if p.UID != "" {
		return p.UID
	}
	return keySanitizer.Replace(p.Email)
}
