package ws

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/hub"
	"github.com/fathima-sithara/realtime-chat/internal/service"
	"github.com/fathima-sithara/realtime-chat/internal/store"
)

// Router dispatches an inbound event to the handler for its kind.
type Router struct {
	hub   *hub.Hub
	rooms store.RoomStore
	chat  *service.ChatService
	log   *zap.SugaredLogger
}

func NewRouter(h *hub.Hub, rooms store.RoomStore, chat *service.ChatService, log *zap.SugaredLogger) *Router {
	return &Router{hub: h, rooms: rooms, chat: chat, log: log}
}

func (r *Router) Route(ctx context.Context, s *Session, ev Event) {
	switch {
	case ev.Kind == KindChatMessage:
		r.chatMessage(ctx, s, ev)
	case ev.Kind.IsCallSignal():
		r.callSignal(ctx, s, ev)
	case ev.Kind == KindTyping:
		r.typing(ctx, s)
	}
}

// room re-reads the session's room; it answers the sender and returns nil when the room is gone.
func (r *Router) room(ctx context.Context, s *Session) *domain.Room {
	room, err := r.rooms.GetRoom(ctx, s.RoomID())
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.sendError(ReasonRoomNotFound)
			return nil
		}
		r.log.Errorw("room lookup failed", "room_id", s.RoomID(), "conn_id", s.ID(), "error", err)
		return nil
	}
	return room
}

// chatMessage persists the text and echoes it to the whole room, sender included.
func (r *Router) chatMessage(ctx context.Context, s *Session, ev Event) {
	sender := s.Identity()
	if sender == nil {
		s.sendError(ReasonAuthRequired)
		return
	}
	if ev.Text == "" {
		return
	}
	room := r.room(ctx, s)
	if room == nil {
		return
	}
	m, err := r.chat.SendMessage(ctx, room, sender, ev.Text)
	if err != nil {
		r.log.Errorw("message not persisted", "room_id", room.ID, "user_id", sender.ID, "conn_id", s.ID(), "error", err)
		return
	}
	if _, err := r.hub.Publish(room.ID, newChatMessageFrame(m, sender), nil); err != nil {
		r.log.Errorw("publish message", "room_id", room.ID, "message_id", m.ID, "error", err)
	}
}

// callSignal relays the payload to the peer; the originator never hears its own signal.
func (r *Router) callSignal(ctx context.Context, s *Session, ev Event) {
	room := r.room(ctx, s)
	if room == nil {
		return
	}
	var sender int64
	if id := s.Identity(); id != nil {
		sender = id.ID
	}
	if _, err := r.hub.Publish(room.ID, signalFrame(ev, sender), s); err != nil {
		r.log.Errorw("publish call signal", "room_id", room.ID, "type", ev.Kind.String(), "error", err)
	}
}

func (r *Router) typing(ctx context.Context, s *Session) {
	id := s.Identity()
	if id == nil {
		s.sendError(ReasonAuthRequired)
		return
	}
	room := r.room(ctx, s)
	if room == nil {
		return
	}
	frame := typingFrame{Type: "typing", UserID: id.ID, UserName: id.DisplayName}
	if _, err := r.hub.Publish(room.ID, frame, s); err != nil {
		r.log.Errorw("publish typing", "room_id", room.ID, "error", err)
	}
}
