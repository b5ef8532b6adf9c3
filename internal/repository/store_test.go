package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/store"
)

// exerciseStore runs the shared store behaviour against a backend seeded with
// users 7 (alice) and 9 (coach) and no rooms.
func exerciseStore(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.Ping(ctx))

	u, err := st.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	_, err = st.GetUser(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = st.GetRoom(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	room, created, err := st.OpenRoom(ctx, 7, 9)
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := st.OpenRoom(ctx, 7, 9)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.ID, again.ID)

	got, err := st.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.TrainerID)

	// a room without messages lists with no last message
	rooms, err := st.ListRooms(ctx, 7)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Nil(t, rooms[0].LastMessage)
	assert.Zero(t, rooms[0].Unread)

	for _, m := range []struct {
		from int64
		text string
	}{{7, "one"}, {7, "two"}, {9, "three"}} {
		_, err := st.CreateMessage(ctx, room.ID, m.from, m.text)
		require.NoError(t, err)
	}

	latest, err := st.ListMessages(ctx, room.ID, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "two", latest[0].Content)
	assert.Equal(t, "three", latest[1].Content)

	all, err := st.ListMessages(ctx, room.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rooms, err = st.ListRooms(ctx, 9)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, "three", rooms[0].LastMessage.Content)
	assert.False(t, rooms[0].LastMessage.CreatedAt.IsZero())
	assert.Equal(t, int64(2), rooms[0].Unread)

	n, err := st.MarkRead(ctx, room.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rooms, err = st.ListRooms(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, rooms[0].Unread)
	rooms, err = st.ListRooms(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rooms[0].Unread)
}
