package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/db"
)

// These tests need a running server and are skipped otherwise.
// TEST_DATABASE_URL must point at a disposable database: its messages table is truncated.
const (
	envTestDatabaseURL = "TEST_DATABASE_URL"
	envTestMongoURI    = "TEST_MONGO_URI"
)

func serverEnv(t *testing.T, key string) string {
	t.Helper()

	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, serverEnv(t, envTestDatabaseURL), db.PoolOptions{MaxConns: 4})
	require.NoError(t, err)

	truncate := func() {
		_, err := pool.Exec(ctx, "TRUNCATE messages RESTART IDENTITY")
		require.NoError(t, err)
	}
	truncate()

	s := NewPostgresStore(pool)
	t.Cleanup(func() {
		truncate()
		_ = s.Close()
	})
	return s
}

func openTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	ctx := context.Background()

	database := "relaychat_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := OpenMongo(ctx, serverEnv(t, envTestMongoURI), database)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.collection.Database().Drop(ctx)
		_ = s.Close()
	})
	return s
}

func TestPostgresStore(t *testing.T) {
	runContract(t, openTestPostgres(t))
}

func TestMongoStore(t *testing.T) {
	runContract(t, openTestMongo(t))
}

// checkServerOrdering appends many messages back to back, so several may share a
// timestamp, and expects them back in append order with recipients intact.
func checkServerOrdering(t *testing.T, s MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	var want []string
	for i := 0; i < 50; i++ {
		draft := NewDraft("alice", ptr("bob"), "burst")
		if i%2 == 1 {
			draft = NewDraft("bob", ptr("alice"), "burst")
		}

		msg, err := s.Append(ctx, draft)
		req.NoError(err)
		want = append(want, msg.ID)
	}

	public, err := s.Append(ctx, NewDraft("alice", nil, "room"))
	req.NoError(err)

	got, err := s.ListByConversation(ctx, conversation.Resolve("alice", "bob"))
	req.NoError(err)
	req.Len(got, len(want))

	for i, m := range got {
		req.Equal(want[i], m.ID)
		req.NotNil(m.Recipient)
		req.Equal(conversation.Resolve("alice", "bob"), m.ConversationID)
		if i > 0 {
			req.False(m.Timestamp.Before(got[i-1].Timestamp))
		}
	}

	general, err := s.ListByConversation(ctx, conversation.General)
	req.NoError(err)
	req.Len(general, 1)
	req.Equal(public.ID, general[0].ID)
	req.Nil(general[0].Recipient)
}

func TestPostgresStore_BurstOrdering(t *testing.T) {
	checkServerOrdering(t, openTestPostgres(t))
}

func TestMongoStore_BurstOrdering(t *testing.T) {
	checkServerOrdering(t, openTestMongo(t))
}
