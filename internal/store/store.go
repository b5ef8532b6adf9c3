package store

import (
	"context"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type RoomStore interface {
	// GetRoom returns domain.ErrRoomNotFound when no room has the id.
	GetRoom(ctx context.Context, id int64) (*domain.Room, error)
	ListRooms(ctx context.Context, participantID int64) ([]*domain.RoomSummary, error)
	// OpenRoom returns the room for the pair, creating it when missing. created reports which.
	OpenRoom(ctx context.Context, userID, trainerID int64) (room *domain.Room, created bool, err error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, roomID, senderID int64, content string) (*domain.Message, error)
	// ListMessages returns the latest limit messages of the room, oldest first.
	ListMessages(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error)
	// MarkRead flags every message in the room not sent by readerID as read.
	MarkRead(ctx context.Context, roomID, readerID int64) (int64, error)
}

type UserStore interface {
	// GetUser returns domain.ErrUserNotFound when no user has the id.
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type Store interface {
	RoomStore
	MessageStore
	UserStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
