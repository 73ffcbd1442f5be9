package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultBlockSize is the number of messages a room buffer holds before
// it is sealed into a conversation block.
const DefaultBlockSize = 10

const defaultSealTimeout = 5 * time.Second

type roomBuffer struct {
	mu       sync.Mutex
	messages []Message
}

// ConversationBatcher owns the per-room live buffers. Appended messages
// accumulate in memory until a buffer reaches the block size; the full
// buffer is then sealed with the current time and handed to the
// conversation store on a separate goroutine, so the broadcast path
// never waits on persistence.
type ConversationBatcher struct {
	buffers     *SyncMap[string, *roomBuffer]
	store       ConversationStore
	blockSize   int
	sealTimeout time.Duration
	logger      *slog.Logger
	onSealError func(roomID string, err error)
	// sealing tracks in-flight persistence dispatches so Close can drain them
	sealing sync.WaitGroup
}

func NewConversationBatcher(store ConversationStore, opts ...BatcherOption) *ConversationBatcher {
	b := &ConversationBatcher{
		buffers:     NewSyncMap[string, *roomBuffer](),
		store:       store,
		blockSize:   DefaultBlockSize,
		sealTimeout: defaultSealTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type BatcherOption func(*ConversationBatcher)

func WithBlockSize(n int) BatcherOption {
	return func(b *ConversationBatcher) {
		if n > 0 {
			b.blockSize = n
		}
	}
}

func WithSealTimeout(d time.Duration) BatcherOption {
	return func(b *ConversationBatcher) {
		b.sealTimeout = d
	}
}

func WithBatcherLogger(logger *slog.Logger) BatcherOption {
	return func(b *ConversationBatcher) {
		b.logger = logger
	}
}

// OnSealError registers a callback invoked when persisting a sealed block
// fails. The block is dropped either way; the callback exists so the
// loss is observable beyond the log line.
func (b *ConversationBatcher) OnSealError(f func(roomID string, err error)) {
	b.onSealError = f
}

// Track opens an empty live buffer for the room. Appends to rooms that
// are not tracked are dropped.
func (b *ConversationBatcher) Track(roomID string) {
	b.buffers.LoadOrStore(roomID, &roomBuffer{})
}

// Tracked reports whether the room has an open buffer.
func (b *ConversationBatcher) Tracked(roomID string) bool {
	_, ok := b.buffers.Load(roomID)
	return ok
}

// Append adds the message to the room's live buffer and returns true.
// If the room has no open buffer the message is dropped and Append
// returns false; that is the defined behavior for unknown rooms, not an
// error. When the append fills the buffer to the block size, the buffer
// is sealed: the batcher takes ownership of the full slice, stamps it
// with the current time, installs a fresh empty buffer and dispatches
// persistence asynchronously.
func (b *ConversationBatcher) Append(roomID string, msg Message) bool {
	rb, ok := b.buffers.Load(roomID)
	if !ok {
		return false
	}

	rb.mu.Lock()
	rb.messages = append(rb.messages, msg)
	if len(rb.messages) < b.blockSize {
		rb.mu.Unlock()
		return true
	}
	sealed := rb.messages
	rb.messages = make([]Message, 0, b.blockSize)
	rb.mu.Unlock()

	conv := Conversation{
		RoomID:    roomID,
		Timestamp: time.Now(),
		Messages:  sealed,
	}

	b.sealing.Add(1)
	go func() {
		defer b.sealing.Done()
		b.seal(conv)
	}()

	return true
}

func (b *ConversationBatcher) seal(conv Conversation) {
	ctx, cancel := context.WithTimeout(context.Background(), b.sealTimeout)
	defer cancel()

	if _, err := b.store.AddConversation(ctx, conv); err != nil {
		// The sealed block is lost. There is no retry: requeueing into the
		// next buffer would reorder history across blocks.
		b.logger.Error(fmt.Sprintf("seal conversation: %v", err),
			slog.String("room", conv.RoomID),
			slog.Int("messages", len(conv.Messages)))
		if b.onSealError != nil {
			b.onSealError(conv.RoomID, err)
		}
	}
}

// Snapshot returns a copy of the room's live buffer. The second return
// value is false if the room is not tracked.
func (b *ConversationBatcher) Snapshot(roomID string) ([]Message, bool) {
	rb, ok := b.buffers.Load(roomID)
	if !ok {
		return nil, false
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]Message, len(rb.messages))
	copy(out, rb.messages)
	return out, true
}

// Len returns the current length of the room's live buffer.
func (b *ConversationBatcher) Len(roomID string) int {
	rb, ok := b.buffers.Load(roomID)
	if !ok {
		return 0
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.messages)
}

// Wait blocks until all dispatched persistence calls have completed.
func (b *ConversationBatcher) Wait() {
	b.sealing.Wait()
}
