package ws

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// InMessage is an inbound chat frame. The username field of the wire
// payload is deliberately ignored: the sender identity is taken from the
// authenticated connection, never from the payload.
type InMessage struct {
	origin Conn
	Sender string `json:"-"`
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// Origin returns the connection the message arrived on.
func (m *InMessage) Origin() Conn {
	return m.origin
}

// OutMessage is the broadcast frame forwarded to peers, one JSON text
// frame per message.
type OutMessage struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

func decodeInMessage(t int, r io.Reader) (*InMessage, error) {
	if t != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected message type: %d", t)
	}

	var msg InMessage
	if err := json.NewDecoder(r).Decode(&msg); err != nil {
		return nil, fmt.Errorf("json.Decoder.Decode: %w", err)
	}
	return &msg, nil
}

func encodeOutMessage(f func(t int) (io.WriteCloser, error), msg *OutMessage) error {
	w, err := f(websocket.TextMessage)
	if err != nil {
		return fmt.Errorf("NextWriter: %w", err)
	}
	defer w.Close()

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		return fmt.Errorf("json.Encoder.Encode: %w", err)
	}

	return nil
}
