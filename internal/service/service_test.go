package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/store"
)

type fakeNotifier struct {
	messages []*domain.Message
	rooms    []*domain.Room
	err      error
}

func (f *fakeNotifier) PublishMessageSent(_ context.Context, m *domain.Message) error {
	f.messages = append(f.messages, m)
	return f.err
}

func (f *fakeNotifier) PublishRoomOpened(_ context.Context, r *domain.Room) error {
	f.rooms = append(f.rooms, r)
	return f.err
}

type failingRooms struct{ store.RoomStore }

func (failingRooms) GetRoom(context.Context, int64) (*domain.Room, error) {
	return nil, errors.New("connection refused")
}

func seededStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.PutUser(&domain.User{ID: 7, Username: "alice"})
	st.PutUser(&domain.User{ID: 9, Username: "coach"})
	st.PutUser(&domain.User{ID: 99, Username: "mallory"})
	st.PutRoom(&domain.Room{ID: 42, UserID: 7, TrainerID: 9})
	return st
}

func TestAuthorize(t *testing.T) {
	a := NewAuthorizer(seededStore())
	ctx := context.Background()

	tests := []struct {
		name    string
		roomID  int64
		id      *domain.Identity
		wantErr error
	}{
		{"requester", 42, &domain.Identity{ID: 7}, nil},
		{"provider", 42, &domain.Identity{ID: 9}, nil},
		{"outsider", 42, &domain.Identity{ID: 99}, domain.ErrForbidden},
		{"anonymous", 42, nil, domain.ErrForbidden},
		{"unknown room", 1000, &domain.Identity{ID: 7}, domain.ErrRoomNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := a.Authorize(ctx, tt.roomID, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, room)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.roomID, room.ID)
		})
	}
}

func TestAuthorizeLookupFailure(t *testing.T) {
	a := NewAuthorizer(failingRooms{})
	_, err := a.Authorize(context.Background(), 42, &domain.Identity{ID: 7})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRoomNotFound)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}

func TestSendMessage(t *testing.T) {
	st := seededStore()
	n := &fakeNotifier{}
	svc := NewChatService(st, n, n, zap.NewNop().Sugar())
	ctx := context.Background()
	room, err := st.GetRoom(ctx, 42)
	require.NoError(t, err)

	m, err := svc.SendMessage(ctx, room, &domain.Identity{ID: 7}, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.SenderID)
	assert.Equal(t, "hi", m.Content)
	assert.False(t, m.CreatedAt.IsZero())
	require.Len(t, n.messages, 1)

	_, err = svc.SendMessage(ctx, room, &domain.Identity{ID: 99}, "intrude")
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = svc.SendMessage(ctx, room, &domain.Identity{ID: 7}, "")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	msgs, err := st.ListMessages(ctx, 42, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendMessageNotifierFailureIsNotFatal(t *testing.T) {
	st := seededStore()
	n := &fakeNotifier{err: errors.New("broker down")}
	svc := NewChatService(st, n, nil, zap.NewNop().Sugar())
	room, _ := st.GetRoom(context.Background(), 42)

	m, err := svc.SendMessage(context.Background(), room, &domain.Identity{ID: 9}, "still saved")
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
}

func TestOpenRoom(t *testing.T) {
	st := seededStore()
	n := &fakeNotifier{}
	svc := NewChatService(st, nil, n, zap.NewNop().Sugar())
	ctx := context.Background()

	room, created, err := svc.OpenRoom(ctx, 7, 9)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(42), room.ID)
	assert.Empty(t, n.rooms)

	room, created, err = svc.OpenRoom(ctx, 99, 9)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(99), room.UserID)
	assert.Len(t, n.rooms, 1)

	_, _, err = svc.OpenRoom(ctx, 7, 7)
	assert.ErrorIs(t, err, domain.ErrSelfChat)

	_, _, err = svc.OpenRoom(ctx, 7, 12345)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestHistoryAndMarkRead(t *testing.T) {
	st := seededStore()
	svc := NewChatService(st, nil, nil, zap.NewNop().Sugar())
	ctx := context.Background()
	room, _ := st.GetRoom(ctx, 42)

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.SendMessage(ctx, room, &domain.Identity{ID: 7}, text)
		require.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, room, &domain.Identity{ID: 9}, "reply")
	require.NoError(t, err)

	msgs, err := svc.History(ctx, 42, 9, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Content)
	assert.Equal(t, "reply", msgs[1].Content)

	_, err = svc.History(ctx, 42, 99, 10)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	n, err := svc.MarkRead(ctx, 42, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rooms, err := svc.Rooms(ctx, 7)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, int64(1), rooms[0].Unread)
	assert.Equal(t, "reply", rooms[0].LastMessage.Content)
}

type limitRecorder struct {
	*store.MemoryStore
	limits []int
}

func (l *limitRecorder) ListMessages(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error) {
	l.limits = append(l.limits, limit)
	return l.MemoryStore.ListMessages(ctx, roomID, limit)
}

func TestHistoryLimitClamp(t *testing.T) {
	rec := &limitRecorder{MemoryStore: seededStore()}
	svc := NewChatService(rec, nil, nil, zap.NewNop().Sugar())
	ctx := context.Background()

	for _, limit := range []int{0, -5, 10, 200, 201, 5000} {
		_, err := svc.History(ctx, 42, 7, limit)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{
		store.DefaultHistoryLimit,
		store.DefaultHistoryLimit,
		10,
		store.MaxHistoryLimit,
		store.MaxHistoryLimit,
		store.MaxHistoryLimit,
	}, rec.limits)
}
