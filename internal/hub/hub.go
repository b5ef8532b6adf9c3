package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/metric"
)

// Member is an open connection that can receive serialized events.
// Send must not block; a member that cannot take an event returns an error.
type Member interface {
	ID() string
	Send(data []byte) error
}

type group struct {
	members map[string]Member
	mu      sync.RWMutex
}

// Hub maps room ids to the members currently open on them. All state is process local.
type Hub struct {
	rooms map[int64]*group
	// member id -> room id; a member sits in at most one group
	where   map[string]int64
	mu      sync.RWMutex
	log     *zap.SugaredLogger
	metrics *metric.Metrics
}

func New(log *zap.SugaredLogger, m *metric.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[int64]*group),
		where:   make(map[string]int64),
		log:     log,
		metrics: m,
	}
}

// Join adds m to the room's group. A member already in another group is moved.
func (h *Hub) Join(roomID int64, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.where[m.ID()]; ok && prev != roomID {
		h.removeLocked(prev, m)
	}
	g, ok := h.rooms[roomID]
	if !ok {
		g = &group{members: make(map[string]Member)}
		h.rooms[roomID] = g
	}
	g.mu.Lock()
	g.members[m.ID()] = m
	count := len(g.members)
	g.mu.Unlock()
	h.where[m.ID()] = roomID

	h.log.Debugw("member joined", "room_id", roomID, "conn_id", m.ID(), "members", count)
}

// Leave removes m from the room's group. Leaving twice, or leaving a room never joined, is a no-op.
func (h *Hub) Leave(roomID int64, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, m)
}

func (h *Hub) removeLocked(roomID int64, m Member) {
	g, ok := h.rooms[roomID]
	if !ok {
		return
	}
	// waits for in-flight publishes on this group
	g.mu.Lock()
	_, present := g.members[m.ID()]
	delete(g.members, m.ID())
	count := len(g.members)
	g.mu.Unlock()
	if !present {
		return
	}
	if h.where[m.ID()] == roomID {
		delete(h.where, m.ID())
	}
	h.log.Debugw("member left", "room_id", roomID, "conn_id", m.ID(), "members", count)
	if count == 0 {
		delete(h.rooms, roomID)
	}
}

// Publish serializes event once and hands it to every member of the room except exclude
// (nil excludes nobody). It returns once every member has been offered the event; a member
// whose Send fails is skipped. The returned count is the number of members that accepted it.
func (h *Hub) Publish(roomID int64, event any, exclude Member) (int, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	g, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return 0, nil
	}
	g.mu.RLock()
	h.mu.RUnlock()
	defer g.mu.RUnlock()

	var skip string
	if exclude != nil {
		skip = exclude.ID()
	}
	delivered, dropped := 0, 0
	for id, m := range g.members {
		if id == skip {
			continue
		}
		if err := m.Send(data); err != nil {
			dropped++
			h.log.Debugw("send to member failed", "room_id", roomID, "conn_id", id, "error", err)
			continue
		}
		delivered++
	}
	h.metrics.Fanout(delivered, dropped)
	return delivered, nil
}

// Members returns the number of open members in the room.
func (h *Hub) Members(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g, ok := h.rooms[roomID]
	if !ok {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

func (h *Hub) Stats() (rooms, members int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms = len(h.rooms)
	for _, g := range h.rooms {
		g.mu.RLock()
		members += len(g.members)
		g.mu.RUnlock()
	}
	return rooms, members
}
