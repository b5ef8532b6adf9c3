package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/store"
)

type MessageNotifier interface {
	PublishMessageSent(ctx context.Context, m *domain.Message) error
}

type RoomNotifier interface {
	PublishRoomOpened(ctx context.Context, r *domain.Room) error
}

type ChatService struct {
	st    store.Store
	authz *Authorizer
	msgs  MessageNotifier
	rooms RoomNotifier
	log   *zap.SugaredLogger
}

// NewChatService wires the storage and the optional event notifiers (nil disables them).
func NewChatService(st store.Store, msgs MessageNotifier, rooms RoomNotifier, log *zap.SugaredLogger) *ChatService {
	return &ChatService{st: st, authz: NewAuthorizer(st), msgs: msgs, rooms: rooms, log: log}
}

// SendMessage persists a message from sender into room. Notification is best effort.
func (s *ChatService) SendMessage(ctx context.Context, room *domain.Room, sender *domain.Identity, content string) (*domain.Message, error) {
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if !room.HasParticipant(sender.ID) {
		return nil, domain.ErrNotParticipant
	}
	m, err := s.st.CreateMessage(ctx, room.ID, sender.ID, content)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	if s.msgs != nil {
		if err := s.msgs.PublishMessageSent(ctx, m); err != nil {
			s.log.Warnw("publish message.sent failed", "room_id", room.ID, "message_id", m.ID, "error", err)
		}
	}
	return m, nil
}

func (s *ChatService) Rooms(ctx context.Context, userID int64) ([]*domain.RoomSummary, error) {
	return s.st.ListRooms(ctx, userID)
}

// OpenRoom returns the room between userID and trainerID, creating it on first use.
func (s *ChatService) OpenRoom(ctx context.Context, userID, trainerID int64) (*domain.Room, bool, error) {
	if userID == trainerID {
		return nil, false, domain.ErrSelfChat
	}
	for _, id := range []int64{userID, trainerID} {
		if _, err := s.st.GetUser(ctx, id); err != nil {
			return nil, false, err
		}
	}
	room, created, err := s.st.OpenRoom(ctx, userID, trainerID)
	if err != nil {
		return nil, false, fmt.Errorf("open room: %w", err)
	}
	if created && s.rooms != nil {
		if err := s.rooms.PublishRoomOpened(ctx, room); err != nil {
			s.log.Warnw("publish room.opened failed", "room_id", room.ID, "error", err)
		}
	}
	return room, created, nil
}

// History returns the latest messages of a room the caller participates in, oldest first.
func (s *ChatService) History(ctx context.Context, roomID, callerID int64, limit int) ([]*domain.Message, error) {
	if _, err := s.authz.Authorize(ctx, roomID, &domain.Identity{ID: callerID}); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = store.DefaultHistoryLimit
	case limit > store.MaxHistoryLimit:
		limit = store.MaxHistoryLimit
	}
	return s.st.ListMessages(ctx, roomID, limit)
}

// MarkRead flags the peer's messages in the room as read for the caller.
func (s *ChatService) MarkRead(ctx context.Context, roomID, callerID int64) (int64, error) {
	if _, err := s.authz.Authorize(ctx, roomID, &domain.Identity{ID: callerID}); err != nil {
		return 0, err
	}
	return s.st.MarkRead(ctx, roomID, callerID)
}
