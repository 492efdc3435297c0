package mirror

import (
	"context"
	"sort"
	"sync"
	"time"

	"eslive/internal/models"
	"eslive/internal/observability"
	"eslive/internal/store"
)

// sweepInterval is how often the expiry sweeper scans the local list.
const sweepInterval = time.Minute

// ChatMirror synchronizes the chat message collection. The local list
// is always sorted by message ID, which sorts by creation time. New
// messages only become visible through the subscription round trip, so
// chat is eventually consistent and never shows a message the store
// has not accepted.
type ChatMirror struct {
	gw          store.Gateway
	logger      *observability.MirrorLogger
	deleteStale bool

	mu       sync.RWMutex
	messages []models.ChatMessage
	sub      store.Subscription

	watchMu  sync.Mutex
	watchers map[int]chan []models.ChatMessage
	nextID   int

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewChatMirror creates a stopped mirror. When deleteStale is set the
// expiry sweeper removes messages older than models.MessageTTL from
// the store; otherwise it only logs what it would remove.
func NewChatMirror(gw store.Gateway, deleteStale bool) *ChatMirror {
	return &ChatMirror{
		gw:          gw,
		deleteStale: deleteStale,
		logger:      observability.NewMirrorLogger("chat"),
		watchers:    make(map[int]chan []models.ChatMessage),
	}
}

// Start performs the bootstrap read, opens the subscription, and
// launches the expiry sweeper.
func (m *ChatMirror) Start(ctx context.Context) error {
	value, _, err := m.gw.Read(ctx, store.PathChatMessages)
	if err != nil {
		return err
	}
	m.apply(messagesFromSnapshot(value))

	sub, err := m.gw.Subscribe(ctx, store.PathChatMessages, func(value any) {
		m.apply(messagesFromSnapshot(value))
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	m.sweepStop = make(chan struct{})
	m.sweepDone = make(chan struct{})
	go m.sweepLoop()

	m.logger.LogLifecycle(ctx, "started", map[string]any{"deleteStale": m.deleteStale})
	return nil
}

// Stop releases the subscription and stops the sweeper.
func (m *ChatMirror) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	if m.sweepStop != nil {
		close(m.sweepStop)
		<-m.sweepDone
		m.sweepStop = nil
	}
	m.logger.LogLifecycle(context.Background(), "stopped", nil)
}

// Messages returns a copy of the local list, sorted by ID.
func (m *ChatMirror) Messages() []models.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Add writes the message as a child keyed by its ID. The local list is
// not touched; the message appears when the subscription delivers it.
// When the collection does not exist yet the root is created first so
// an empty chat and a cleared chat look the same.
func (m *ChatMirror) Add(ctx context.Context, msg models.ChatMessage) error {
	_, ok, err := m.gw.Read(ctx, store.PathChatMessages)
	if err != nil {
		return models.NewStoreError(err)
	}
	if !ok {
		if err := m.gw.Write(ctx, store.PathChatMessages, map[string]any{}); err != nil {
			return models.NewStoreError(err)
		}
	}
	path := store.ChildPath(store.PathChatMessages, msg.ID)
	if err := m.gw.Write(ctx, path, msg.ToMap()); err != nil {
		m.logger.LogError(ctx, "add", err)
		return models.NewStoreError(err)
	}
	return nil
}

// Delete removes a message the caller authored. Authorization is by
// author UID, not display name, so renaming never orphans or exposes
// messages. An unauthorized or unknown ID results in zero store
// writes.
func (m *ChatMirror) Delete(ctx context.Context, id, callerUID string) error {
	m.mu.RLock()
	var found *models.ChatMessage
	for i := range m.messages {
		if m.messages[i].ID == id {
			found = &m.messages[i]
			break
		}
	}
	m.mu.RUnlock()

	if found == nil {
		return models.NewNotFoundError("message", id)
	}
	if found.AuthorUID == "" || found.AuthorUID != callerUID {
		return models.NewForbiddenError("cannot delete another user's message")
	}
	if err := m.gw.Remove(ctx, store.ChildPath(store.PathChatMessages, id)); err != nil {
		m.logger.LogError(ctx, "delete", err)
		return models.NewStoreError(err)
	}
	return nil
}

// ClearAll replaces the collection with an empty one.
func (m *ChatMirror) ClearAll(ctx context.Context) error {
	if err := m.gw.Write(ctx, store.PathChatMessages, map[string]any{}); err != nil {
		m.logger.LogError(ctx, "clear", err)
		return models.NewStoreError(err)
	}
	return nil
}

// Stale returns the messages older than models.MessageTTL at the given
// instant. Messages missing a creation stamp are never considered
// stale.
func (m *ChatMirror) Stale(now time.Time) []models.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.Stale(now) {
			out = append(out, msg)
		}
	}
	return out
}

// Watch returns a channel of list snapshots plus a release function.
func (m *ChatMirror) Watch() (<-chan []models.ChatMessage, func()) {
	ch := make(chan []models.ChatMessage, 1)

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

func (m *ChatMirror) apply(msgs []models.ChatMessage) {
	m.mu.Lock()
	m.messages = msgs
	m.mu.Unlock()

	m.watchMu.Lock()
	for _, ch := range m.watchers {
		select {
		case ch <- msgs:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msgs:
			default:
			}
		}
	}
	m.watchMu.Unlock()
}

func (m *ChatMirror) sweepLoop() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
			m.sweep(context.Background())
		}
	}
}

func (m *ChatMirror) sweep(ctx context.Context) {
	stale := m.Stale(time.Now())
	if len(stale) == 0 {
		return
	}
	m.logger.LogLifecycle(ctx, "expiry sweep", map[string]any{
		"stale":  len(stale),
		"delete": m.deleteStale,
	})
	if !m.deleteStale {
		return
	}
	for _, msg := range stale {
		if err := m.gw.Remove(ctx, store.ChildPath(store.PathChatMessages, msg.ID)); err != nil {
			m.logger.LogError(ctx, "sweep", err)
		}
	}
}

// messagesFromSnapshot converts a collection snapshot into a sorted
// slice. Non-map snapshots (absent, or a legacy scalar at the root)
// yield an empty list.
func messagesFromSnapshot(value any) []models.ChatMessage {
	raw, _ := value.(map[string]any)
	msgs := make([]models.ChatMessage, 0, len(raw))
	for id, child := range raw {
		fields, ok := child.(map[string]any)
		if !ok {
			continue
		}
		msg := models.ChatMessageFromMap(fields)
		if msg.ID == "" {
			msg.ID = id
		}
		if msg.ID == "" {
			continue
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs
}
