package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

type fakeWriter struct {
	msgs  []kafkago.Message
	err   error
	calls int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testMessage() *domain.Message {
	return &domain.Message{ID: 1, RoomID: 42, SenderID: 7, Content: "hi", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestPublishMessageSent(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, zap.NewNop().Sugar())

	require.NoError(t, p.PublishMessageSent(context.Background(), testMessage()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var ev MessageSentEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, MessageSentEvent{MessageID: 1, RoomID: 42, SenderID: 7, Content: "hi", CreatedAt: "2024-01-02T03:04:05.000Z"}, ev)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, zap.NewNop().Sugar())

	for i := 0; i < 5; i++ {
		assert.Error(t, p.PublishMessageSent(context.Background(), testMessage()))
	}
	assert.Equal(t, 5, w.calls)

	err := p.PublishMessageSent(context.Background(), testMessage())
	assert.ErrorContains(t, err, "kafka unavailable")
	assert.Equal(t, 5, w.calls, "open breaker must not reach the writer")
}
