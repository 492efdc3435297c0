package notifications

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"eslive/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per viewer
	maxConnsPerViewer = 12
	// Max total connections
	maxTotalConns = 10000
)

// Hub is a websocket hub that maps viewer UID -> list of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	shutdown   chan struct{}
	done       chan struct{}
	presence   *ViewerPresence
}

// NewHub creates a new Hub instance for delivering site events.
func NewHub(redisClients ...*redis.Client) *Hub {
	var redisClient *redis.Client
	if len(redisClients) > 0 {
		redisClient = redisClients[0]
	}

	return &Hub{
		conns:    make(map[string]map[*Client]struct{}),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		presence: NewViewerPresence(redisClient),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "site event hub" }

// Presence exposes the viewer presence tracker.
func (h *Hub) Presence() *ViewerPresence { return h.presence }

// Register a connection for a given UID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(uid string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[uid]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[uid] = m
	}

	if len(m) >= maxConnsPerViewer {
		h.mu.Unlock()
		return nil, errors.New("viewer connection limit reached")
	}

	client := NewClient(h, conn, uid)

	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	if h.presence != nil {
		h.presence.Register(context.Background(), uid)
	}

	return client, nil
}

// UnregisterClient removes a client from the hub.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removedClient := false
	if m, ok := h.conns[client.UID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removedClient = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UID)
		}
	}
	h.mu.Unlock()

	if removedClient {
		observability.WebSocketConnectionsTotal.Dec()
		if h.presence != nil {
			h.presence.Unregister(context.Background(), client.UID)
		}
	}
}

// Broadcast sends message to all connections for a UID.
func (h *Hub) Broadcast(uid string, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[uid]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether a viewer currently has at least one active
// websocket connection.
func (h *Hub) IsOnline(uid string) bool {
	if h.presence != nil {
		return h.presence.IsOnline(context.Background(), uid)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[uid]
	return ok && len(clients) > 0
}

// StartWiring connects the Notifier to this hub: it subscribes to Redis
// patterns and forwards messages to matching viewer connections, so an
// event published on any instance reaches viewers connected to this one.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == siteBroadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		uid, ok := strings.CutPrefix(channel, userChannelPrefix)
		if !ok || uid == "" {
			log.Printf("invalid event channel: %s", channel)
			return
		}
		h.Broadcast(uid, payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	if h.presence != nil {
		h.presence.Stop()
	}

	h.mu.Lock()
	for uid, viewerConns := range h.conns {
		for client := range viewerConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for %s: %v", uid, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for %s: %v", uid, err)
			}
		}
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	close(h.done)

	return nil
}
