package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/auth"
	"github.com/fathima-sithara/realtime-chat/internal/ws"
)

const localUserID = "user_id"

// JWTAuth requires a bearer token and stores the caller's id under "user_id".
func JWTAuth(tokens auth.TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "missing auth")
		}
		uid, err := tokens.Validate(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(localUserID, uid)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(localUserID).(int64)
	return id
}

// upgradeRequired lets websocket upgrades through with their handshake credential.
// The credential is only checked once the socket is open, so a bad token is reported
// with a close code instead of an HTTP status.
func upgradeRequired(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(ws.LocalCredential, auth.CredentialFrom(c.Query("token"), c.Get(fiber.HeaderAuthorization)))
	return c.Next()
}

type RequestLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit caps requests per authenticated caller. A limiter outage lets requests through.
func RateLimit(l RequestLimiter, log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := l.Allow(c.UserContext(), "user:"+strconv.FormatInt(callerID(c), 10))
		if err != nil {
			log.Warnw("rate limiter unavailable", "error", err)
			return c.Next()
		}
		if !ok {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
