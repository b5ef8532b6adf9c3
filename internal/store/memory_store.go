package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/utils"
)

// keep memory bounded per room
const maxMessagesPerRoom = 1000

type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[int64]*domain.Room
	messages map[int64][]*domain.Message // roomID -> msgs
	users    map[int64]*domain.User
	lastRoom int64
	lastMsg  int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[int64]*domain.Room),
		messages: make(map[int64][]*domain.Message),
		users:    make(map[int64]*domain.User),
	}
}

// PutUser inserts or replaces a user record.
func (s *MemoryStore) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// PutRoom inserts a room with a caller-chosen id.
func (s *MemoryStore) PutRoom(r *domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = utils.NowUTC()
	}
	s.rooms[r.ID] = &cp
	if r.ID > s.lastRoom {
		s.lastRoom = r.ID
	}
}

func (s *MemoryStore) GetRoom(_ context.Context, id int64) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRooms(_ context.Context, participantID int64) ([]*domain.RoomSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.RoomSummary{}
	for _, r := range s.rooms {
		if !r.HasParticipant(participantID) {
			continue
		}
		room := *r
		sum := &domain.RoomSummary{Room: &room}
		msgs := s.messages[r.ID]
		if n := len(msgs); n > 0 {
			last := *msgs[n-1]
			sum.LastMessage = &last
		}
		for _, m := range msgs {
			if m.SenderID != participantID && !m.IsRead {
				sum.Unread++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Room.CreatedAt.Equal(out[j].Room.CreatedAt) {
			return out[i].Room.ID > out[j].Room.ID
		}
		return out[i].Room.CreatedAt.After(out[j].Room.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) OpenRoom(_ context.Context, userID, trainerID int64) (*domain.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.UserID == userID && r.TrainerID == trainerID {
			cp := *r
			return &cp, false, nil
		}
	}
	s.lastRoom++
	r := &domain.Room{ID: s.lastRoom, UserID: userID, TrainerID: trainerID, CreatedAt: utils.NowUTC()}
	s.rooms[r.ID] = r
	cp := *r
	return &cp, true, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, roomID, senderID int64, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	s.lastMsg++
	m := &domain.Message{
		ID:        s.lastMsg,
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: utils.NowUTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	if len(s.messages[roomID]) > maxMessagesPerRoom {
		s.messages[roomID] = s.messages[roomID][len(s.messages[roomID])-maxMessagesPerRoom:]
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, roomID int64, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	start := len(msgs) - limit
	out := make([]*domain.Message, 0, limit)
	for _, m := range msgs[start:] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, roomID, readerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages[roomID] {
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
