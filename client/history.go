// Package client implements the consumer side of the history API: a
// per-room loader that pages backward through sealed conversation
// blocks as the user scrolls.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// State is the loader's gate. At most one fetch is in flight per room;
// an Advance while Fetching is a no-op, not queued.
type State int

const (
	// Ready means the next Advance will issue a fetch.
	Ready State = iota
	// Fetching means a fetch is in flight.
	Fetching
	// Exhausted means the room has no older history. Unlike a stuck
	// gate, the state is observable by callers.
	Exhausted
)

type Message struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Conversation mirrors the history endpoint's response shape. Timestamp
// is unix milliseconds.
type Conversation struct {
	RoomID    string    `json:"room_id"`
	Timestamp int64     `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HistoryLoader incrementally loads older conversation blocks for one
// room. The cursor starts at room-join time and moves backward to the
// timestamp of each fetched block. Advance is single-flight: it never
// issues a second fetch while one is outstanding, and it reopens the
// gate when a fetch resolves, whether it succeeded or failed.
type HistoryLoader struct {
	baseURL string
	roomID  string
	http    *http.Client

	mu      sync.Mutex
	state   State
	cursor  int64
	history []Message
}

func NewHistoryLoader(baseURL, roomID string, opts ...LoaderOption) *HistoryLoader {
	l := &HistoryLoader{
		baseURL: baseURL,
		roomID:  roomID,
		http:    http.DefaultClient,
		state:   Ready,
		cursor:  time.Now().UnixMilli(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type LoaderOption func(*HistoryLoader)

func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *HistoryLoader) {
		l.http = c
	}
}

// WithCursor overrides the starting cursor (unix milliseconds).
func WithCursor(millis int64) LoaderOption {
	return func(l *HistoryLoader) {
		l.cursor = millis
	}
}

// State returns the loader's current gate state.
func (l *HistoryLoader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Messages returns a copy of the history loaded so far, oldest first.
func (l *HistoryLoader) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.history))
	copy(out, l.history)
	return out
}

// Advance fetches the next older conversation block and prepends its
// messages to the loaded history. It returns true if a block was
// loaded. It returns false without fetching when a fetch is already in
// flight or the history is exhausted. A fetch error leaves the gate
// open so a later Advance can retry.
func (l *HistoryLoader) Advance(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.state != Ready {
		l.mu.Unlock()
		return false, nil
	}
	l.state = Fetching
	cursor := l.cursor
	l.mu.Unlock()

	conv, err := l.fetch(ctx, cursor)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.state = Ready
		return false, err
	}

	if conv == nil {
		l.state = Exhausted
		return false, nil
	}

	l.history = append(append([]Message{}, conv.Messages...), l.history...)
	l.cursor = conv.Timestamp
	l.state = Ready
	return true, nil
}

func (l *HistoryLoader) fetch(ctx context.Context, before int64) (*Conversation, error) {
	u := fmt.Sprintf("%s/chat/%s/messages?before=%d",
		l.baseURL, url.PathEscape(l.roomID), before)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	res, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(res.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("fetch conversation: %s (status %d)", apiErr.Message, res.StatusCode)
		}
		return nil, fmt.Errorf("fetch conversation: unexpected status %d", res.StatusCode)
	}

	var conv *Conversation
	if err := json.NewDecoder(res.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}

	return conv, nil
}
