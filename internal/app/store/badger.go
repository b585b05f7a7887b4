package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"relaychat/internal/app/conversation"
	"relaychat/internal/pkg/logx"
)

const backendBadger = "badger"

// BadgerStore persists messages in an embedded Badger database.
//
// Keys are "msg/<hex conversation id>/<unix nano, 19 digits>/<sequence, 20 digits>".
// Hex-encoding the conversation id keeps one conversation's prefix from matching
// another's, and the zero padding makes lexicographic key order equal to
// chronological order, so a prefix scan returns a conversation in append order.
type BadgerStore struct {
	db *badger.DB

	// mu serializes Append so the timestamp and sequence never go backwards.
	mu     sync.Mutex
	lastTs time.Time
	seq    uint64

	now func() time.Time
}

// OpenBadger opens (or creates) a Badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	logger := logx.Logger().With().Str("component", "BadgerStore").Logger()

	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger: logger}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}

	return &BadgerStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func conversationPrefix(id conversation.ID) []byte {
	return []byte("msg/" + hex.EncodeToString([]byte(id)) + "/")
}

// Append writes the message under a chronologically sortable key.
func (s *BadgerStore) Append(ctx context.Context, draft Draft) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, storageErr(backendBadger, "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if ts.Before(s.lastTs) {
		ts = s.lastTs
	}
	s.seq++

	msg := Message{
		ID:             uuid.NewString(),
		Sender:         draft.Sender,
		Recipient:      draft.Recipient,
		Content:        draft.Content,
		ConversationID: draft.ConversationID,
		Timestamp:      ts,
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return Message{}, storageErr(backendBadger, "append", err)
	}

	key := fmt.Sprintf("%s%019d/%020d", conversationPrefix(draft.ConversationID), ts.UnixNano(), s.seq)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return Message{}, storageErr(backendBadger, "append", err)
	}

	s.lastTs = ts
	return msg, nil
}

// ListByConversation scans the conversation's key prefix in ascending order.
func (s *BadgerStore) ListByConversation(ctx context.Context, id conversation.ID) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(backendBadger, "list", err)
	}

	prefix := conversationPrefix(id)
	messages := make([]Message, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := it.Item().Value(func(val []byte) error {
				var msg Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(backendBadger, "list", err)
	}

	return messages, nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
