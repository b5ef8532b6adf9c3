package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/utils"
)

type RoomOpenedEvent struct {
	RoomID    int64  `json:"room_id"`
	UserID    int64  `json:"user_id"`
	TrainerID int64  `json:"trainer_id"`
	CreatedAt string `json:"created_at"`
}

type Publisher struct {
	nc      *nats.Conn
	subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("realtime-chat"))
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

func (p *Publisher) PublishRoomOpened(_ context.Context, r *domain.Room) error {
	data, err := json.Marshal(RoomOpenedEvent{
		RoomID:    r.ID,
		UserID:    r.UserID,
		TrainerID: r.TrainerID,
		CreatedAt: utils.ISO8601(r.CreatedAt),
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close flushes pending publishes and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
