// Package mirror keeps local replicas of the shared remote documents:
// the settings singleton, the chat collection, and the signed-in user's
// profile record. Each mirror is an owned service object with an
// explicit Start/Stop lifecycle: one bootstrap read, then a continuous
// subscription that fully replaces the local copy on every snapshot.
// Writes go out as whole documents and the last network write wins;
// nothing here merges concurrent edits.
package mirror

import (
	"context"
	"sync"

	"eslive/internal/models"
	"eslive/internal/observability"
	"eslive/internal/store"
)

// SettingsMirror synchronizes the admin settings document.
type SettingsMirror struct {
	gw     store.Gateway
	logger *observability.MirrorLogger

	mu      sync.RWMutex
	current models.Settings
	loaded  bool
	sub     store.Subscription

	watchMu  sync.Mutex
	watchers map[int]chan models.Settings
	nextID   int
}

// NewSettingsMirror creates a stopped mirror over the gateway.
func NewSettingsMirror(gw store.Gateway) *SettingsMirror {
	return &SettingsMirror{
		gw:       gw,
		current:  models.DefaultSettings(),
		logger:   observability.NewMirrorLogger("settings"),
		watchers: make(map[int]chan models.Settings),
	}
}

// Start performs the bootstrap read and opens the continuous
// subscription. Defaults are coerced here, once, so consumers never see
// an absent field.
func (m *SettingsMirror) Start(ctx context.Context) error {
	value, ok, err := m.gw.Read(ctx, store.PathAdminSettings)
	if err != nil {
		return err
	}
	if ok {
		raw, _ := value.(map[string]any)
		m.apply(models.SettingsFromMap(raw))
	}

	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()

	sub, err := m.gw.Subscribe(ctx, store.PathAdminSettings, func(value any) {
		raw, _ := value.(map[string]any)
		if raw == nil {
			// Document deleted or never written: fall back to defaults.
			m.apply(models.DefaultSettings())
			return
		}
		m.apply(models.SettingsFromMap(raw))
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	m.logger.LogLifecycle(ctx, "started", nil)
	return nil
}

// Stop releases the subscription. Safe to call when never started.
func (m *SettingsMirror) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	m.logger.LogLifecycle(context.Background(), "stopped", nil)
}

// Current returns the local copy of the settings document.
func (m *SettingsMirror) Current() models.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Loaded reports whether the bootstrap read has completed.
func (m *SettingsMirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Save optimistically applies the new document locally, then writes it
// out in full. Watchers are notified only once the write succeeds, so
// same-process consumers react without waiting for the subscription
// round trip and never fan out a document the store rejected. A
// concurrent save from another session will silently supersede this
// one — last full-document write wins.
func (m *SettingsMirror) Save(ctx context.Context, s models.Settings) error {
	m.setCurrent(s)
	if err := m.gw.Write(ctx, store.PathAdminSettings, s.ToMap()); err != nil {
		m.logger.LogError(ctx, "save", err)
		return models.NewStoreError(err)
	}
	m.notifyWatchers(s)
	return nil
}

// Watch returns a channel of settings snapshots plus a release
// function. The channel observes both local saves and remote updates;
// slow consumers drop intermediate snapshots rather than block the
// mirror.
func (m *SettingsMirror) Watch() (<-chan models.Settings, func()) {
	ch := make(chan models.Settings, 1)

	m.watchMu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = ch
	m.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.watchMu.Lock()
			delete(m.watchers, id)
			m.watchMu.Unlock()
		})
	}
}

func (m *SettingsMirror) apply(s models.Settings) {
	m.setCurrent(s)
	m.notifyWatchers(s)
}

func (m *SettingsMirror) setCurrent(s models.Settings) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

func (m *SettingsMirror) notifyWatchers(s models.Settings) {
	m.watchMu.Lock()
	for _, ch := range m.watchers {
		select {
		case ch <- s:
		default:
			// Drop the stale snapshot and replace it with the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
	m.watchMu.Unlock()
}
