package ws

import (
	"log/slog"
	"time"

	"example.com/chat-broker/core"
)

// ChatRelay implements the broadcast semantics on top of the hub: it
// stamps each inbound frame with the sender's bound identity, sanitizes
// the text, appends the message to the room's live buffer and fans it
// out to every other connection. Messages for rooms without an open
// buffer are silently dropped.
type ChatRelay struct {
	batcher *core.ConversationBatcher
	logger  *slog.Logger
}

func NewChatRelay(batcher *core.ConversationBatcher, logger *slog.Logger) *ChatRelay {
	return &ChatRelay{
		batcher: batcher,
		logger:  logger,
	}
}

// HandleMessage is registered as the hub's OnMessage handler. It runs on
// the hub goroutine, so messages of a room are buffered and forwarded in
// the order the hub received them.
func (rl *ChatRelay) HandleMessage(a HubActions, in *InMessage) {
	msg := core.Message{
		Username: in.Sender,
		Text:     core.Sanitize(in.Text),
		SentAt:   time.Now(),
	}

	if ok := rl.batcher.Append(in.RoomID, msg); !ok {
		rl.logger.Debug("dropped message for unknown room",
			slog.String("room", in.RoomID), slog.String("sender", in.Sender))
		return
	}

	a.BroadcastExcept(&OutMessage{
		RoomID:   in.RoomID,
		Username: msg.Username,
		Text:     msg.Text,
	}, in.Origin())
}
