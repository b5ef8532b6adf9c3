package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/auth"
	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/hub"
	"github.com/fathima-sithara/realtime-chat/internal/redis"
	"github.com/fathima-sithara/realtime-chat/internal/service"
	"github.com/fathima-sithara/realtime-chat/internal/ws"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PresenceReader interface {
	GetPresence(ctx context.Context, userID int64) (redis.Presence, error)
	Connections(ctx context.Context, userID int64) ([]redis.ConnMeta, error)
}

type Deps struct {
	Chat     *service.ChatService
	Tokens   auth.TokenValidator
	WS       *ws.Handler
	Hub      *hub.Hub
	Store    Pinger
	Presence PresenceReader // optional
	Limiter  RequestLimiter // optional
	Gatherer prometheus.Gatherer
	Log      *zap.SugaredLogger
	// AccessLog turns on the fiber request logger.
	AccessLog bool
}

type Server struct {
	chat     *service.ChatService
	hub      *hub.Hub
	store    Pinger
	presence PresenceReader
	log      *zap.SugaredLogger
}

func NewServer(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(d.Log),
	})
	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New())
	}

	s := &Server{chat: d.Chat, hub: d.Hub, store: d.Store, presence: d.Presence, log: d.Log}

	app.Get("/health", s.health)
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Use("/ws", upgradeRequired)
	app.Get("/ws/chat/:room_id", websocket.New(d.WS.Serve))

	v1 := app.Group("/api/v1", JWTAuth(d.Tokens))
	if d.Limiter != nil {
		v1.Use(RateLimit(d.Limiter, d.Log))
	}
	v1.Get("/chat/rooms", s.listRooms)
	v1.Post("/chat/rooms", s.openRoom)
	v1.Get("/chat/rooms/:room_id/messages", s.listMessages)
	v1.Post("/chat/rooms/:room_id/read", s.markRead)
	if d.Presence != nil {
		v1.Get("/presence/:user_id", s.getPresence)
	}

	return app
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	rooms, members := s.hub.Stats()
	body := fiber.Map{"status": "ok", "rooms": rooms, "connections": members}
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warnw("health: store ping failed", "error", err)
		body["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}

// errorHandler renders every error as {"error": "..."} with a status derived from
// fiber errors and the domain sentinels.
func errorHandler(log *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
			msg = "internal error"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotParticipant):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrSelfChat), errors.Is(err, domain.ErrEmptyContent):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
