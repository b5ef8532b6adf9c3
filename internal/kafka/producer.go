package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/utils"
)

// MessageSentEvent is the payload published after a chat message is stored.
type MessageSentEvent struct {
	MessageID int64  `json:"message_id"`
	RoomID    int64  `json:"room_id"`
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes message.sent events. Writes go through a circuit breaker so a broker
// outage costs one fast failure per message instead of a full write timeout.
type Producer struct {
	writer  messageWriter
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewProducer(brokers []string, topic string, log *zap.SugaredLogger) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return newProducer(w, log)
}

func newProducer(w messageWriter, log *zap.SugaredLogger) *Producer {
	st := gobreaker.Settings{
		Name:        "kafka-message-sent",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Producer{writer: w, cb: gobreaker.NewCircuitBreaker(st), timeout: 5 * time.Second}
}

// PublishMessageSent keys the record by room so one room's events stay ordered in a partition.
func (p *Producer) PublishMessageSent(ctx context.Context, m *domain.Message) error {
	b, err := json.Marshal(MessageSentEvent{
		MessageID: m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: utils.ISO8601(m.CreatedAt),
	})
	if err != nil {
		return err
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(m.RoomID, 10)),
		Value: b,
		Time:  m.CreatedAt,
	}
	_, err = p.cb.Execute(func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return nil, p.writer.WriteMessages(wctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("kafka unavailable: %w", err)
	}
	return err
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
