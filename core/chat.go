package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Message is a single chat message. It is immutable once created: the
// username is bound at the ingress connection and the text is sanitized
// before the message enters a room buffer.
type Message struct {
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// Room represents a chat room. The ID is either a generated UUID or a
// legacy raw key; the broker treats it as an opaque key into the per-room
// buffers.
type Room struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Conversation is a sealed, immutable block of messages for one room.
// Timestamp is assigned when the block is sealed, not per message.
// Seq is a monotonic insertion sequence used to break timestamp ties.
type Conversation struct {
	Seq       int64     `json:"-"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

var (
	// ErrInvalidRoom is returned when a chat room is not found.
	ErrInvalidRoom = errors.New("invalid room")
	// ErrInvalidConversation is returned when a conversation is missing
	// required fields (room, timestamp or messages).
	ErrInvalidConversation = errors.New("invalid conversation")
)

// RoomCreateInput represents the input for creating a room.
type RoomCreateInput struct {
	Name  string `json:"name" validate:"required"`
	Image string `json:"image"`
}

// Validate validates the room input.
func (r *RoomCreateInput) Validate() error {
	return validate.Struct(r)
}

var sanitizer = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize escapes < and > in message text. This is deliberately minimal:
// it defuses markup injection without touching already-escaped entities,
// so it is idempotent on its own output.
func Sanitize(text string) string {
	return sanitizer.Replace(text)
}

type ConversationStore interface {

	// AddConversation durably appends a sealed conversation block.
	// It returns ErrInvalidConversation if the room ID or timestamp is a
	// zero value, or the block has no messages.
	AddConversation(ctx context.Context, conv Conversation) (*Conversation, error)

	// GetLastConversation returns the conversation block for the room with
	// the greatest timestamp strictly before the given instant. A zero
	// before is interpreted as now. Timestamp ties are broken by the
	// highest insertion sequence. If no block qualifies, it returns nil.
	GetLastConversation(ctx context.Context, roomID string, before time.Time) (*Conversation, error)

	// AddRoom creates a room with a generated ID and returns it.
	AddRoom(ctx context.Context, input RoomCreateInput) (*Room, error)

	// GetRoom returns the room with the given ID, generated or legacy.
	// If the room is not found, it returns nil.
	GetRoom(ctx context.Context, roomID string) (*Room, error)

	// GetRooms returns all rooms. It is used to seed the per-room buffers
	// at startup.
	GetRooms(ctx context.Context) ([]Room, error)
}
