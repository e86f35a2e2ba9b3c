package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathub/pkg/interfaces"
	"chathub/pkg/types"
)

func newTestMessages(t *testing.T) (*Messages, *time.Time) {
	t.Helper()
	clock, now := frozenClock()
	s := NewMessages(newTestManager(t))
	s.now = now
	return s, clock
}

func TestMessages_AppendAssignsID(t *testing.T) {
	s, _ := newTestMessages(t)
	ctx := context.Background()

	id, err := s.Append(ctx, &types.ChatMessage{Text: "hello", UserID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.NotZero(t, msgs[0].CreatedAt)
}

func TestMessages_ListRecentOrderAndLimit(t *testing.T) {
	s, clock := newTestMessages(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, &types.ChatMessage{Text: string(rune('a' + i)), UserID: "u1"})
		require.NoError(t, err)
		*clock = clock.Add(time.Second)
	}

	msgs, err := s.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// The newest 3, oldest first.
	assert.Equal(t, "c", msgs[0].Text)
	assert.Equal(t, "d", msgs[1].Text)
	assert.Equal(t, "e", msgs[2].Text)
}

func TestMessages_SoftDelete(t *testing.T) {
	s, _ := newTestMessages(t)
	ctx := context.Background()

	id, err := s.Append(ctx, &types.ChatMessage{Text: "remove me", UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, id, "admin1"))

	// Deleted messages stay in history with deletion metadata.
	msgs, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Deleted)
	assert.Equal(t, "admin1", msgs[0].DeletedBy)
	assert.NotZero(t, msgs[0].DeletedAt)
	assert.Equal(t, "remove me", msgs[0].Text)
}

func TestMessages_SoftDeleteUnknown(t *testing.T) {
	s, _ := newTestMessages(t)

	err := s.SoftDelete(context.Background(), "no-such-id", "admin1")
	assert.ErrorIs(t, err, interfaces.ErrMessageNotFound)
}

func TestMessages_RetentionPurge(t *testing.T) {
	s, clock := newTestMessages(t)
	ctx := context.Background()

	_, err := s.Append(ctx, &types.ChatMessage{Text: "old", UserID: "u1"})
	require.NoError(t, err)

	// A deleted message is purged on the same schedule as a live one.
	deletedID, err := s.Append(ctx, &types.ChatMessage{Text: "old deleted", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, s.SoftDelete(ctx, deletedID, "admin1"))

	*clock = clock.Add(31 * 24 * time.Hour)
	_, err = s.Append(ctx, &types.ChatMessage{Text: "fresh", UserID: "u1"})
	require.NoError(t, err)

	msgs, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0].Text)
}

func TestMessages_PurgeOlderThanReportsCount(t *testing.T) {
	s, clock := newTestMessages(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, &types.ChatMessage{Text: "old", UserID: "u1"})
		require.NoError(t, err)
	}

	*clock = clock.Add(48 * time.Hour)

	removed, err := s.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = s.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMessages_SetRetention(t *testing.T) {
	s, clock := newTestMessages(t)
	s.SetRetention(time.Hour)
	ctx := context.Background()

	_, err := s.Append(ctx, &types.ChatMessage{Text: "short lived", UserID: "u1"})
	require.NoError(t, err)

	*clock = clock.Add(2 * time.Hour)

	msgs, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
