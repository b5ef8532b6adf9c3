package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/hub"
	"github.com/fathima-sithara/realtime-chat/internal/metric"
)

// LocalCredential is the fiber local the upgrade middleware stores the handshake token under.
const LocalCredential = "ws_credential"

type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*domain.Identity, bool)
}

type RoomAuthorizer interface {
	Authorize(ctx context.Context, roomID int64, id *domain.Identity) (*domain.Room, error)
}

// Presence records which users hold open connections. Failures are logged and ignored.
type Presence interface {
	Connected(ctx context.Context, userID int64, connID string, roomID int64) error
	Disconnected(ctx context.Context, userID int64, connID string) error
}

type Options struct {
	PingInterval    time.Duration
	// PongWait is how long a peer may stay silent, pongs included, before the
	// session is dropped. Defaults to twice the ping interval.
	PongWait        time.Duration
	WriteDeadline   time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	RateLimitPerSec int
}

type Deps struct {
	Resolver   IdentityResolver
	Authorizer RoomAuthorizer
	Hub        *hub.Hub
	Router     *Router
	Presence   Presence // optional
	Metrics    *metric.Metrics
	Log        *zap.SugaredLogger
}

// Handler accepts websocket connections for /ws/chat/:room_id and owns their sessions.
type Handler struct {
	resolver IdentityResolver
	authz    RoomAuthorizer
	hub      *hub.Hub
	router   *Router
	presence Presence
	metrics  *metric.Metrics
	log      *zap.SugaredLogger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closing  bool
	wg       sync.WaitGroup
}

func NewHandler(d Deps, opts Options) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = 2 * opts.PingInterval
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 65536
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		resolver: d.Resolver,
		authz:    d.Authorizer,
		hub:      d.Hub,
		router:   d.Router,
		presence: d.Presence,
		metrics:  d.Metrics,
		log:      d.Log,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Serve is the gofiber websocket handler.
func (h *Handler) Serve(c *websocket.Conn) {
	cred, _ := c.Locals(LocalCredential).(string)
	h.ServeTransport(c, c.Params("room_id"), cred)
}

// ServeTransport runs one session on t and returns when it ends.
func (h *Handler) ServeTransport(t Transport, rawRoomID, credential string) {
	// wg.Add must not race with the Wait in Shutdown
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		h.metrics.Handshake("shutdown")
		deadline := time.Now().Add(h.opts.WriteDeadline)
		_ = t.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()
	newSession(h, t).run(h.ctx, rawRoomID, credential)
}

func (h *Handler) opened(s *Session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	if h.ctx.Err() != nil {
		// accepted while shutting down
		s.goAway()
	}

	h.metrics.Handshake("accepted")
	h.metrics.Connected()
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
		defer cancel()
		if err := h.presence.Connected(ctx, s.identity.ID, s.id, s.roomID); err != nil {
			h.log.Warnw("presence connect", "user_id", s.identity.ID, "error", err)
		}
	}
}

func (h *Handler) closed(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	h.metrics.Disconnected()
	if h.presence != nil {
		// the handler context may already be cancelled during shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.presence.Disconnected(ctx, s.identity.ID, s.id); err != nil {
			h.log.Warnw("presence disconnect", "user_id", s.identity.ID, "error", err)
		}
	}
}

// Open returns the number of open sessions.
func (h *Handler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every open session with 1001 and waits for them to leave their rooms.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	h.mu.Lock()
	h.closing = true
	open := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()
	for _, s := range open {
		s.goAway()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
