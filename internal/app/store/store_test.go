package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
)

func ptr(id user.Identity) *user.Identity {
	return &id
}

// runContract exercises the behaviour every MessageStore backend must share.
func runContract(t *testing.T, s MessageStore) {
	ctx := context.Background()

	t.Run("append assigns id and timestamp", func(t *testing.T) {
		req := require.New(t)

		msg, err := s.Append(ctx, NewDraft("alice", nil, "hello room"))
		req.NoError(err)
		req.NotEmpty(msg.ID)
		req.False(msg.Timestamp.IsZero())
		req.Equal(conversation.General, msg.ConversationID)
		req.Nil(msg.Recipient)
	})

	t.Run("private conversation is listed in append order", func(t *testing.T) {
		req := require.New(t)

		first, err := s.Append(ctx, NewDraft("alice", ptr("bob"), "hi"))
		req.NoError(err)
		second, err := s.Append(ctx, NewDraft("bob", ptr("alice"), "hey"))
		req.NoError(err)
		third, err := s.Append(ctx, NewDraft("alice", ptr("bob"), ""))
		req.NoError(err)

		_, err = s.Append(ctx, NewDraft("alice", ptr("carol"), "other conversation"))
		req.NoError(err)

		got, err := s.ListByConversation(ctx, conversation.Resolve("bob", "alice"))
		req.NoError(err)
		req.Len(got, 3)
		req.Equal([]string{first.ID, second.ID, third.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
		req.Equal("hi", got[0].Content)
		req.Equal(user.Identity("bob"), *got[0].Recipient)
		req.Equal(user.Identity("bob"), got[1].Sender)
		req.Equal("", got[2].Content)

		for i := 1; i < len(got); i++ {
			req.False(got[i].Timestamp.Before(got[i-1].Timestamp))
		}
	})

	t.Run("general is isolated from a private conversation named general", func(t *testing.T) {
		req := require.New(t)

		_, err := s.Append(ctx, NewDraft("general", ptr("x"), "private"))
		req.NoError(err)

		got, err := s.ListByConversation(ctx, conversation.General)
		req.NoError(err)
		for _, m := range got {
			req.Equal(conversation.General, m.ConversationID)
			req.Nil(m.Recipient)
		}
	})

	t.Run("unknown conversation is empty, not nil", func(t *testing.T) {
		req := require.New(t)

		got, err := s.ListByConversation(ctx, conversation.Resolve("nobody", "noone"))
		req.NoError(err)
		req.NotNil(got)
		req.Empty(got)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	runContract(t, s)
}

func TestMemoryStore_TimestampsNeverGoBackwards(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Second)}
	s.now = func() time.Time {
		ts := clock[0]
		clock = clock[1:]
		return ts
	}

	first, err := s.Append(context.Background(), NewDraft("alice", nil, "1"))
	req.NoError(err)
	second, err := s.Append(context.Background(), NewDraft("alice", nil, "2"))
	req.NoError(err)
	req.Equal(first.Timestamp, second.Timestamp)
}

func TestMemoryStore_ClosedAndCancelled(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, NewDraft("alice", nil, "late"))
	var storageErr *StorageError
	req.True(errors.As(err, &storageErr))
	req.ErrorIs(err, context.Canceled)

	req.NoError(s.Close())
	_, err = s.Append(context.Background(), NewDraft("alice", nil, "closed"))
	req.ErrorIs(err, ErrClosed)
	req.True(errors.As(err, &storageErr))
	req.Equal("append", storageErr.Op)
	req.Equal(DriverMemory, storageErr.Backend)
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	runContract(t, s)
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	req.NoError(err)
	sent, err := s.Append(context.Background(), NewDraft("alice", ptr("bob"), "persisted"))
	req.NoError(err)
	req.NoError(s.Close())

	s, err = OpenBadger(dir)
	req.NoError(err)
	defer s.Close()

	got, err := s.ListByConversation(context.Background(), conversation.Resolve("alice", "bob"))
	req.NoError(err)
	req.Len(got, 1)
	req.Equal(sent.ID, got[0].ID)
	req.True(sent.Timestamp.Equal(got[0].Timestamp))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "sqlite"})
	require.Error(t, err)

	s, err := Open(context.Background(), Options{Driver: DriverMemory})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
}
