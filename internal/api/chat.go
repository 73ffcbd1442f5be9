package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"example.com/chat-broker/core"
	"github.com/go-chi/chi/v5"
)

type ChatHandler struct {
	conversations core.ConversationStore
	batcher       *core.ConversationBatcher
}

func NewChatHandler(conversations core.ConversationStore, batcher *core.ConversationBatcher) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		batcher:       batcher,
	}
}

type MessageResponse struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

func NewMessagesResponse(messages []core.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageResponse{Username: m.Username, Text: m.Text})
	}
	return out
}

type RoomResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	// Messages is the room's current unsealed buffer.
	Messages []MessageResponse `json:"messages"`
}

type ConversationResponse struct {
	RoomID    string            `json:"room_id"`
	Timestamp int64             `json:"timestamp"`
	Messages  []MessageResponse `json:"messages"`
}

// GetRoomsHandler returns all rooms, each with its live buffer.
func (h *ChatHandler) GetRoomsHandler(w http.ResponseWriter, r *http.Request) error {
	rooms, err := h.conversations.GetRooms(r.Context())
	if err != nil {
		return fmt.Errorf("get rooms: %w", err)
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		buffered, _ := h.batcher.Snapshot(room.ID)
		out = append(out, RoomResponse{
			ID:       room.ID,
			Name:     room.Name,
			Image:    room.Image,
			Messages: NewMessagesResponse(buffered),
		})
	}

	return WriteJsonResponse(w, out)
}

// CreateRoomHandler creates a room and opens a live buffer for it.
func (h *ChatHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) error {
	var input core.RoomCreateInput
	if err := DecodeJson(r.Body, &input); err != nil {
		return NewApiError("invalid payload", http.StatusBadRequest)
	}
	defer r.Body.Close()

	room, err := h.conversations.AddRoom(r.Context(), input)
	if err != nil {
		if errors.Is(err, core.ErrInvalidRoom) {
			return NewApiError(err.Error(), http.StatusBadRequest)
		}
		return fmt.Errorf("add room: %w", err)
	}

	h.batcher.Track(room.ID)

	return WriteJsonResponse(w, RoomResponse{
		ID:       room.ID,
		Name:     room.Name,
		Image:    room.Image,
		Messages: []MessageResponse{},
	})
}

// GetLastConversationHandler returns the most recent sealed block for
// the room strictly before the given instant. The response body is null
// when the history is exhausted.
func (h *ChatHandler) GetLastConversationHandler(w http.ResponseWriter, r *http.Request) error {
	roomID := chi.URLParam(r, "roomID")

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return NewApiError("before must be a unix millisecond timestamp", http.StatusBadRequest)
		}
		before = time.UnixMilli(millis)
	}

	room, err := h.conversations.GetRoom(r.Context(), roomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return NewApiError("room not found", http.StatusNotFound)
	}

	conv, err := h.conversations.GetLastConversation(r.Context(), roomID, before)
	if err != nil {
		return fmt.Errorf("get last conversation: %w", err)
	}
	if conv == nil {
		return WriteJsonResponse(w, nil)
	}

	return WriteJsonResponse(w, ConversationResponse{
		RoomID:    conv.RoomID,
		Timestamp: conv.Timestamp.UnixMilli(),
		Messages:  NewMessagesResponse(conv.Messages),
	})
}
