package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eslive/internal/mirror"
	"eslive/internal/models"
	"eslive/internal/store"
)

func TestBridgeForwardsSettingsAndDisplay(t *testing.T) {
	gw := store.NewMemoryStore()
	ctx := context.Background()

	settings := mirror.NewSettingsMirror(gw)
	require.NoError(t, settings.Start(ctx))
	defer settings.Stop()

	chat := mirror.NewChatMirror(gw, false)
	require.NoError(t, chat.Start(ctx))
	defer chat.Stop()

	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()
	client, err := hub.Register("viewer", nil)
	require.NoError(t, err)

	bridge := NewBridge(hub, settings, chat)
	bridge.Start()
	defer bridge.Stop()

	s := models.DefaultSettings()
	s.IsStreamActive = false
	require.NoError(t, settings.Save(ctx, s))

	types := collectEventTypes(t, client, 2)
	assert.Contains(t, types, "settings_updated")
	assert.Contains(t, types, "display_changed")
}

func TestBridgeForwardsChatSnapshots(t *testing.T) {
	gw := store.NewMemoryStore()
	ctx := context.Background()

	settings := mirror.NewSettingsMirror(gw)
	require.NoError(t, settings.Start(ctx))
	defer settings.Stop()

	chat := mirror.NewChatMirror(gw, false)
	require.NoError(t, chat.Start(ctx))
	defer chat.Stop()

	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()
	client, err := hub.Register("viewer", nil)
	require.NoError(t, err)

	bridge := NewBridge(hub, settings, chat)
	bridge.Start()
	defer bridge.Stop()

	require.NoError(t, chat.Add(ctx, models.NewChatMessage("u1", "alice", "hi", "")))

	types := collectEventTypes(t, client, 1)
	assert.Contains(t, types, "chat_updated")
}

func collectEventTypes(t *testing.T, client *Client, want int) []string {
	t.Helper()
	var types []string
	deadline := time.After(testEventuallyTimeout)
	for len(types) < want {
		select {
		case msg := <-client.Send:
			var ev Event
			require.NoError(t, json.Unmarshal(msg, &ev))
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatalf("timed out after %d events: %v", len(types), types)
		}
	}
	return types
}
