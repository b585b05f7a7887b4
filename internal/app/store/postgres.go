package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
)

const backendPostgres = "postgres"

const (
	insertMessageSQL = `
INSERT INTO messages (id, conversation_id, sender, recipient, content)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`

	listMessagesSQL = `
SELECT id::text, sender, recipient, content, conversation_id, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC, seq ASC`
)

// PostgresStore persists messages in the messages table created by the db migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. The store owns the pool and closes it on Close.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append inserts the message; the database assigns the timestamp.
func (s *PostgresStore) Append(ctx context.Context, draft Draft) (Message, error) {
	id := uuid.New()

	var recipient *string
	if draft.Recipient != nil {
		r := draft.Recipient.String()
		recipient = &r
	}

	var createdAt time.Time
	err := s.pool.QueryRow(ctx, insertMessageSQL,
		id.String(),
		draft.ConversationID.String(),
		draft.Sender.String(),
		recipient,
		draft.Content,
	).Scan(&createdAt)
	if err != nil {
		return Message{}, storageErr(backendPostgres, "append", err)
	}

	return Message{
		ID:             id.String(),
		Sender:         draft.Sender,
		Recipient:      draft.Recipient,
		Content:        draft.Content,
		ConversationID: draft.ConversationID,
		Timestamp:      createdAt.UTC(),
	}, nil
}

// ListByConversation reads the conversation in insertion order.
func (s *PostgresStore) ListByConversation(ctx context.Context, id conversation.ID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, listMessagesSQL, id.String())
	if err != nil {
		return nil, storageErr(backendPostgres, "list", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			msgID, sender, content, convID string
			recipient                      *string
			createdAt                      time.Time
		)

		if err := rows.Scan(&msgID, &sender, &recipient, &content, &convID, &createdAt); err != nil {
			return nil, storageErr(backendPostgres, "list", err)
		}

		msg := Message{
			ID:             msgID,
			Sender:         user.Identity(sender),
			Content:        content,
			ConversationID: conversation.ID(convID),
			Timestamp:      createdAt.UTC(),
		}
		if recipient != nil {
			r := user.Identity(*recipient)
			msg.Recipient = &r
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(backendPostgres, "list", err)
	}

	return messages, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
