package models

import (
	"math/rand"
	"time"

	"github.com/rs/xid"
)

// ChatMessage is one entry in the shared chat collection. It is stored
// at chatMessages/<id> and replaced or removed as a whole document.
type ChatMessage struct {
	// ID is the storage key. xid values are globally unique and sort
	// lexicographically in creation order, so the mirror's ascending
	// sort by ID yields chronological order without relying on the
	// wall clock for uniqueness.
	ID string `json:"id"`
	// AuthorUID is the stable identity key used for delete
	// authorization. The display name below is user-editable free text
	// and must never gate anything.
	AuthorUID string `json:"uid"`
	User      string `json:"user"`
	Message   string `json:"message"`
	// Timestamp is a display string fixed at creation time; it is
	// never re-derived from SentAt.
	Timestamp    string `json:"timestamp"`
	Color        string `json:"color"`
	ProfileImage string `json:"profileImage"`
	// SentAt is the creation time in epoch milliseconds, used for the
	// expiry sweep.
	SentAt int64 `json:"sentAt"`
}

// ChatColors is the fixed palette a new message's color is drawn from.
var ChatColors = []string{
	"#00D4FF",
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E9",
}

// MessageTTL is how long a message is considered live before the expiry
// sweep marks it stale.
const MessageTTL = 10 * time.Minute

// NewChatMessage builds a message with a fresh key, a random palette
// color and a locale-fixed display timestamp.
func NewChatMessage(authorUID, username, text, profileImage string) ChatMessage {
	now := time.Now()
	return ChatMessage{
		ID:           xid.New().String(),
		AuthorUID:    authorUID,
		User:         username,
		Message:      text,
		Timestamp:    now.Format("15:04"),
		Color:        ChatColors[rand.Intn(len(ChatColors))],
		ProfileImage: profileImage,
		SentAt:       now.UnixMilli(),
	}
}

// Stale reports whether the message is past its TTL at the given time.
// Messages without a creation stamp never go stale.
func (m ChatMessage) Stale(now time.Time) bool {
	if m.SentAt == 0 {
		return false
	}
	return now.UnixMilli()-m.SentAt > MessageTTL.Milliseconds()
}

// ChatMessageFromMap coerces a raw store payload into a ChatMessage.
// Unknown or mistyped fields degrade to zero values rather than errors;
// a message with an empty ID is discarded by the mirror.
func ChatMessageFromMap(raw map[string]any) ChatMessage {
	var m ChatMessage
	if raw == nil {
		return m
	}
	m.ID, _ = raw["id"].(string)
	m.AuthorUID, _ = raw["uid"].(string)
	m.User, _ = raw["user"].(string)
	m.Message, _ = raw["message"].(string)
	m.Timestamp, _ = raw["timestamp"].(string)
	m.Color, _ = raw["color"].(string)
	m.ProfileImage, _ = raw["profileImage"].(string)
	switch v := raw["sentAt"].(type) {
	case float64:
		m.SentAt = int64(v)
	case int64:
		m.SentAt = v
	case int:
		m.SentAt = int64(v)
	}
	return m
}

// ToMap renders the message in the wire shape the store holds.
func (m ChatMessage) ToMap() map[string]any {
	return map[string]any{
		"id":           m.ID,
		"uid":          m.AuthorUID,
		"user":         m.User,
		"message":      m.Message,
		"timestamp":    m.Timestamp,
		"color":        m.Color,
		"profileImage": m.ProfileImage,
		"sentAt":       m.SentAt,
	}
}
