//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

/*
Package store persists chat messages and returns them grouped by conversation.

MessageStore is the boundary the relay writes through before it delivers anything
live. Several backends implement it: an in-memory store for development and tests,
PostgreSQL, MongoDB, and an embedded Badger database. Open selects one by name.
*/
package store

import (
	"context"
	"fmt"
	"time"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
)

// Message is a persisted chat message. It is never mutated after Append returns it.
type Message struct {
	ID             string          `json:"id"`
	Sender         user.Identity   `json:"sender"`
	Recipient      *user.Identity  `json:"recipient"`
	Content        string          `json:"content"`
	ConversationID conversation.ID `json:"conversationId"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Draft holds the caller-supplied fields of a message about to be stored.
// The store assigns the ID and Timestamp.
type Draft struct {
	Sender         user.Identity
	Recipient      *user.Identity
	Content        string
	ConversationID conversation.ID
}

// NewDraft builds a Draft whose conversation id is derived from sender and recipient.
func NewDraft(sender user.Identity, recipient *user.Identity, content string) Draft {
	return Draft{
		Sender:         sender,
		Recipient:      recipient,
		Content:        content,
		ConversationID: conversation.For(sender, recipient),
	}
}

// MessageStore is the durable message log.
type MessageStore interface {
	// Append persists a message and returns it with its assigned id and timestamp.
	Append(ctx context.Context, draft Draft) (Message, error)

	// ListByConversation returns a conversation's messages ordered by ascending
	// timestamp, ties broken by append order.
	ListByConversation(ctx context.Context, id conversation.ID) ([]Message, error)

	// Close releases the resources held by the store.
	Close() error
}

// StorageError reports a failed store operation.
type StorageError struct {
	// Op is the store operation that failed, e.g. "append".
	Op string

	// Backend names the store implementation.
	Backend string

	// Err is the underlying failure.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(backend, op string, err error) error {
	return &StorageError{Op: op, Backend: backend, Err: err}
}
