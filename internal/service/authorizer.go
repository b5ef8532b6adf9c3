package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/store"
)

// Authorizer admits an identity to a room only when it is one of the room's two participants.
type Authorizer struct {
	rooms store.RoomStore
}

func NewAuthorizer(rooms store.RoomStore) *Authorizer {
	return &Authorizer{rooms: rooms}
}

// Authorize fails closed: domain.ErrRoomNotFound for an unknown room, domain.ErrForbidden
// for anyone else, a wrapped error when the lookup itself fails.
func (a *Authorizer) Authorize(ctx context.Context, roomID int64, id *domain.Identity) (*domain.Room, error) {
	if id == nil {
		return nil, domain.ErrForbidden
	}
	room, err := a.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("lookup room %d: %w", roomID, err)
	}
	if !room.HasParticipant(id.ID) {
		return nil, domain.ErrForbidden
	}
	return room, nil
}
