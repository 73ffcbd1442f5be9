package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SQLiteConversationStore struct {
	db *sql.DB
	// now is swapped out in tests
	now func() time.Time
}

func NewSQLiteConversationStore(db *sql.DB) *SQLiteConversationStore {
	return &SQLiteConversationStore{
		db:  db,
		now: time.Now,
	}
}

func (s *SQLiteConversationStore) AddRoom(ctx context.Context, input RoomCreateInput) (*Room, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}

	room := Room{
		ID:    uuid.New().String(),
		Name:  input.Name,
		Image: input.Image,
	}

	query := `INSERT INTO rooms (id, name, image) VALUES (@id, @name, @image)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("id", room.ID), sql.Named("name", room.Name),
		sql.Named("image", room.Image))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert room): %w", err)
	}

	return &room, nil
}

// GetRoom looks the room up by its ID. Generated UUIDs and legacy raw
// keys live in the same column, so a single keyed lookup serves both
// forms; there is no trial-and-error double query.
func (s *SQLiteConversationStore) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, image FROM rooms WHERE id = ? LIMIT 1", roomID)

	room := new(Room)
	if err := row.Scan(&room.ID, &room.Name, &room.Image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}

	return room, nil
}

func (s *SQLiteConversationStore) GetRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, image FROM rooms ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Image); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return rooms, nil
}

func (s *SQLiteConversationStore) AddConversation(ctx context.Context, conv Conversation) (*Conversation, error) {
	if conv.RoomID == "" || conv.Timestamp.IsZero() || len(conv.Messages) == 0 {
		return nil, ErrInvalidConversation
	}

	encoded, err := json.Marshal(conv.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	query := `INSERT INTO conversations (room_id, timestamp, messages)
	          VALUES (@room_id, @timestamp, @messages)`
	res, err := s.db.ExecContext(ctx, query,
		sql.Named("room_id", conv.RoomID),
		sql.Named("timestamp", conv.Timestamp.UnixMilli()),
		sql.Named("messages", string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert conversation): %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("LastInsertId: %w", err)
	}
	conv.Seq = seq

	return &conv, nil
}

func (s *SQLiteConversationStore) GetLastConversation(ctx context.Context, roomID string, before time.Time) (*Conversation, error) {
	if before.IsZero() {
		before = s.now()
	}

	// Ties on timestamp go to the highest insertion sequence.
	query := `SELECT seq, room_id, timestamp, messages FROM conversations
	          WHERE room_id = @room_id AND timestamp < @before
	          ORDER BY timestamp DESC, seq DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query,
		sql.Named("room_id", roomID), sql.Named("before", before.UnixMilli()))

	var (
		conv    Conversation
		millis  int64
		encoded string
	)
	if err := row.Scan(&conv.Seq, &conv.RoomID, &millis, &encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	conv.Timestamp = time.UnixMilli(millis)

	if err := json.Unmarshal([]byte(encoded), &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}

	return &conv, nil
}
