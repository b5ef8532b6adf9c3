package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

func runServer(t *testing.T) string {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

func TestPublishRoomOpened(t *testing.T) {
	url := runServer(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()
	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("chat.room.opened", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	p, err := NewPublisher(url, "chat.room.opened")
	require.NoError(t, err)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishRoomOpened(context.Background(), &domain.Room{ID: 42, UserID: 7, TrainerID: 9, CreatedAt: created}))
	require.NoError(t, p.Close())

	select {
	case m := <-msgs:
		var ev RoomOpenedEvent
		require.NoError(t, json.Unmarshal(m.Data, &ev))
		assert.Equal(t, int64(42), ev.RoomID)
		assert.Equal(t, int64(7), ev.UserID)
		assert.Equal(t, int64(9), ev.TrainerID)
		assert.NotEmpty(t, ev.CreatedAt)
	case <-time.After(2 * time.Second):
		t.Fatal("room opened event not delivered")
	}
}

func TestCloseNilPublisher(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.Close())
}

func TestNewPublisherUnreachable(t *testing.T) {
	_, err := NewPublisher("nats://127.0.0.1:1", "chat.room.opened")
	assert.Error(t, err)
}
