package notifications

import (
	"context"
	"encoding/json"
	"log"

	"eslive/internal/display"
	"eslive/internal/mirror"
	"eslive/internal/models"
	"eslive/internal/observability"
)

// Event is the wire shape every hub message takes.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Bridge feeds mirror snapshots into the hub as JSON events. Every
// settings snapshot also carries the display selection derived from it,
// so clients never compute the priority ladder themselves.
type Bridge struct {
	hub      *Hub
	settings *mirror.SettingsMirror
	chat     *mirror.ChatMirror

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBridge creates a stopped bridge.
func NewBridge(hub *Hub, settings *mirror.SettingsMirror, chat *mirror.ChatMirror) *Bridge {
	return &Bridge{hub: hub, settings: settings, chat: chat}
}

// Start begins forwarding mirror snapshots until Stop is called.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})

	settingsCh, releaseSettings := b.settings.Watch()
	chatCh, releaseChat := b.chat.Watch()

	go func() {
		defer close(b.done)
		defer releaseSettings()
		defer releaseChat()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-settingsCh:
				b.broadcastSettings(s)
			case msgs := <-chatCh:
				b.broadcastChat(msgs)
			}
		}
	}()
}

// Stop halts forwarding. Safe to call when never started.
func (b *Bridge) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	b.cancel = nil
}

func (b *Bridge) broadcastSettings(s models.Settings) {
	b.broadcast(Event{Type: "settings_updated", Payload: s})
	b.broadcast(Event{
		Type:    "display_changed",
		Payload: map[string]any{"state": display.Select(s)},
	})
}

func (b *Bridge) broadcastChat(msgs []models.ChatMessage) {
	b.broadcast(Event{Type: "chat_updated", Payload: msgs})
}

func (b *Bridge) broadcast(ev Event) {
	_, span := observability.TraceWebSocketEvent(context.Background(), b.hub.Name(), ev.Type)
	defer span.End()

	data, err := json.Marshal(ev)
	if err != nil {
		observability.RecordSpanError(span, err)
		log.Printf("bridge: marshal %s event: %v", ev.Type, err)
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(b.hub.Name(), ev.Type).Inc()
	b.hub.BroadcastAll(string(data))
}
