package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

type UserSource interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// UserCache is a cache-aside layer over the user store. Redis errors fall through to the source.
type UserCache struct {
	client *redis.Client
	source UserSource
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewUserCache(r *redis.Client, source UserSource, prefix string, ttl time.Duration, log *zap.SugaredLogger) *UserCache {
	return &UserCache{client: r, source: source, prefix: prefix, ttl: ttl, log: log}
}

func (c *UserCache) key(id int64) string {
	return fmt.Sprintf("%s:user:%d", c.prefix, id)
}

func (c *UserCache) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	b, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var u domain.User
		if jerr := json.Unmarshal(b, &u); jerr == nil {
			return &u, nil
		}
		c.log.Warnw("corrupt cached user", "user_id", id)
	case !errors.Is(err, redis.Nil):
		c.log.Warnw("user cache read", "user_id", id, "error", err)
	}

	u, err := c.source.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(u); err == nil {
		if err := c.client.Set(ctx, c.key(id), b, c.ttl).Err(); err != nil {
			c.log.Warnw("user cache write", "user_id", id, "error", err)
		}
	}
	return u, nil
}
