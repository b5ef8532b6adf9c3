package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPresenceLifecycle(t *testing.T) {
	mr, rdb := newTestClient(t)
	s := NewPresenceStore(rdb, "chat", time.Hour)
	ctx := context.Background()

	p, err := s.GetPresence(ctx, 7)
	require.NoError(t, err)
	assert.False(t, p.Online())

	require.NoError(t, s.Connected(ctx, 7, "c1", 42))
	require.NoError(t, s.Connected(ctx, 7, "c2", 42))
	assert.True(t, mr.Exists("chat:presence:7"))

	p, err = s.GetPresence(ctx, 7)
	require.NoError(t, err)
	assert.True(t, p.Online())

	conns, err := s.Connections(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, conns, 2)

	require.NoError(t, s.Disconnected(ctx, 7, "c1"))
	p, _ = s.GetPresence(ctx, 7)
	assert.True(t, p.Online(), "still online with one connection left")

	require.NoError(t, s.Disconnected(ctx, 7, "c2"))
	p, _ = s.GetPresence(ctx, 7)
	assert.False(t, p.Online())
	assert.NotZero(t, p.LastSeen)

	// unknown connection is a no-op
	require.NoError(t, s.Disconnected(ctx, 7, "nope"))
}

func TestPresenceExpires(t *testing.T) {
	mr, rdb := newTestClient(t)
	s := NewPresenceStore(rdb, "chat", time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Connected(ctx, 9, "c1", 42))
	mr.FastForward(2 * time.Minute)

	p, err := s.GetPresence(ctx, 9)
	require.NoError(t, err)
	assert.False(t, p.Online())
}

type countingSource struct {
	users map[int64]*domain.User
	calls int
}

func (c *countingSource) GetUser(_ context.Context, id int64) (*domain.User, error) {
	c.calls++
	u, ok := c.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func TestUserCache(t *testing.T) {
	mr, rdb := newTestClient(t)
	src := &countingSource{users: map[int64]*domain.User{
		7: {ID: 7, Username: "alice", FirstName: "Alice", AvatarPath: "a.png"},
	}}
	c := NewUserCache(rdb, src, "chat", time.Minute, zap.NewNop().Sugar())
	ctx := context.Background()

	u, err := c.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.DisplayName())

	u, err = c.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "a.png", u.AvatarPath)
	assert.Equal(t, 1, src.calls)

	// entries expire with the ttl
	mr.FastForward(2 * time.Minute)
	_, err = c.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	_, err = c.GetUser(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	// a redis outage falls through to the source
	mr.Close()
	u, err = c.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
}

func TestRateLimiterWindow(t *testing.T) {
	mr, rdb := newTestClient(t)
	l := NewRateLimiter(rdb, "chat", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "user:7")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "user:9")
	assert.True(t, ok, "keys are counted separately")

	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.True(t, ok)
}
