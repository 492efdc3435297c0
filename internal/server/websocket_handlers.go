package server

import (
	"context"
	"encoding/json"
	"log"

	"eslive/internal/display"
	"eslive/internal/notifications"
	"eslive/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler handles WebSocket connections for live site events:
// settings and chat snapshots, display changes, and per-user events.
// Each connection first receives a full snapshot so a client never has
// to merge deltas.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		wsLogger := observability.NewWSLogger(s.hub.Name())
		ctx := context.Background()

		uid, _ := conn.Locals("uid").(string)
		if uid == "" {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			wsLogger.LogError(ctx, uid, err, "register")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		wsLogger.LogConnect(ctx, uid)

		// Initial state so the client renders without extra fetches.
		s.sendSnapshot(client)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var incoming struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(message, &incoming); err != nil {
				wsLogger.LogError(ctx, uid, err, "incoming")
				return
			}
			switch incoming.Type {
			case "ping":
				c.TrySend([]byte(`{"type":"pong"}`))
			case "resync":
				s.sendSnapshot(c)
			}
		}

		go client.WritePump()
		client.ReadPump()

		wsLogger.LogDisconnect(ctx, uid, "connection closed")
	})
}

// sendSnapshot pushes the full current state to one client.
func (s *Server) sendSnapshot(client *notifications.Client) {
	current := s.settings.Current()
	s.sendEvent(client, notifications.Event{Type: "settings_updated", Payload: current})
	s.sendEvent(client, notifications.Event{
		Type:    "display_changed",
		Payload: map[string]any{"state": display.Select(current)},
	})
	s.sendEvent(client, notifications.Event{Type: "chat_updated", Payload: s.chat.Messages()})
}

func (s *Server) sendEvent(client *notifications.Client, ev notifications.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("websocket: marshal %s event: %v", ev.Type, err)
		return
	}
	client.TrySend(data)
}
