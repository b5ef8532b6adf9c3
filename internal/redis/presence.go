package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore keeps open connection metadata per user so any instance can answer
// "is this user online". Keys:
//   - <prefix>:conn:<userID>     hash connID -> ConnMeta JSON
//   - <prefix>:presence:<userID> Presence JSON
type PresenceStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type ConnMeta struct {
	RoomID      int64  `json:"room_id"`
	ConnID      string `json:"conn_id"`
	ConnectedAt int64  `json:"connected_at"`
}

type Presence struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func (p Presence) Online() bool { return p.Status == "online" }

func NewPresenceStore(r *redis.Client, prefix string, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: r, prefix: prefix, ttl: ttl}
}

func (s *PresenceStore) connKey(userID int64) string {
	return fmt.Sprintf("%s:conn:%d", s.prefix, userID)
}

func (s *PresenceStore) presenceKey(userID int64) string {
	return fmt.Sprintf("%s:presence:%d", s.prefix, userID)
}

// Connected registers a connection and marks the user online. Entries expire after ttl
// so a crashed instance cannot pin users online forever.
func (s *PresenceStore) Connected(ctx context.Context, userID int64, connID string, roomID int64) error {
	now := time.Now().Unix()
	meta, _ := json.Marshal(ConnMeta{RoomID: roomID, ConnID: connID, ConnectedAt: now})
	pres, _ := json.Marshal(Presence{Status: "online", LastSeen: now})

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.connKey(userID), connID, meta)
	pipe.Expire(ctx, s.connKey(userID), s.ttl)
	pipe.Set(ctx, s.presenceKey(userID), pres, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Disconnected removes a connection; the user goes offline with its last one.
func (s *PresenceStore) Disconnected(ctx context.Context, userID int64, connID string) error {
	key := s.connKey(userID)
	if err := s.client.HDel(ctx, key, connID).Err(); err != nil {
		return err
	}
	left, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return err
	}
	if left > 0 {
		return nil
	}
	pres, _ := json.Marshal(Presence{Status: "offline", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), pres, 0).Err()
}

// GetPresence returns the user's presence; a user never seen is offline with LastSeen 0.
func (s *PresenceStore) GetPresence(ctx context.Context, userID int64) (Presence, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Presence{Status: "offline"}, nil
	}
	if err != nil {
		return Presence{}, err
	}
	var p Presence
	if err := json.Unmarshal(b, &p); err != nil {
		return Presence{}, fmt.Errorf("decode presence: %w", err)
	}
	return p, nil
}

// Connections lists the user's registered connections.
func (s *PresenceStore) Connections(ctx context.Context, userID int64) ([]ConnMeta, error) {
	vals, err := s.client.HGetAll(ctx, s.connKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ConnMeta, 0, len(vals))
	for _, v := range vals {
		var m ConnMeta
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
