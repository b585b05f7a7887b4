package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/app/conversation"
)

const backendMemory = "memory"

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store is closed")

// MemoryStore keeps messages in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	byConv map[conversation.ID][]Message
	closed bool

	// now is the clock used to stamp messages.
	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byConv: make(map[conversation.ID][]Message),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append stores the draft. Timestamps never go backwards within a conversation,
// so append order and timestamp order agree.
func (s *MemoryStore) Append(ctx context.Context, draft Draft) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, storageErr(backendMemory, "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Message{}, storageErr(backendMemory, "append", ErrClosed)
	}

	ts := s.now()
	entries := s.byConv[draft.ConversationID]
	if n := len(entries); n > 0 && ts.Before(entries[n-1].Timestamp) {
		ts = entries[n-1].Timestamp
	}

	msg := Message{
		ID:             uuid.NewString(),
		Sender:         draft.Sender,
		Recipient:      draft.Recipient,
		Content:        draft.Content,
		ConversationID: draft.ConversationID,
		Timestamp:      ts,
	}
	s.byConv[draft.ConversationID] = append(entries, msg)

	return msg, nil
}

// ListByConversation returns a copy of the conversation's messages.
func (s *MemoryStore) ListByConversation(ctx context.Context, id conversation.ID) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(backendMemory, "list", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storageErr(backendMemory, "list", ErrClosed)
	}

	out := make([]Message, len(s.byConv[id]))
	copy(out, s.byConv[id])
	return out, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
