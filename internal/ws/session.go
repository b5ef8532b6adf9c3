package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

// Close codes for rejected handshakes.
const (
	CloseUnauthenticated = 4001
	CloseForbidden       = 4003
	CloseRoomNotFound    = 4004
)

var (
	ErrSessionClosed  = errors.New("session is not open")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Transport is the subset of a websocket connection a session drives.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateRejected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRejected:
		return "rejected"
	case StateClosed:
		return "closed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Session is one websocket connection from handshake to close. Frames are handled
// sequentially on the goroutine that calls run; a second goroutine drains the send queue.
type Session struct {
	id      string
	conn    Transport
	h       *Handler
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	mu       sync.Mutex
	state    State
	identity *domain.Identity
	roomID   int64

	// rdMu orders read deadline updates so a late pong cannot undo stopReading.
	rdMu     sync.Mutex
	stopping bool
}

func newSession(h *Handler, conn Transport) *Session {
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		h:    h,
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
	if h.opts.RateLimitPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(h.opts.RateLimitPerSec), h.opts.RateLimitPerSec)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) RoomID() int64 { return s.roomID }

func (s *Session) Identity() *domain.Identity { return s.identity }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send queues data for the writer. It never blocks.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (s *Session) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.h.log.Errorw("marshal frame", "conn_id", s.id, "error", err)
		return
	}
	if err := s.Send(b); err != nil {
		s.h.log.Debugw("frame not queued", "conn_id", s.id, "error", err)
	}
}

func (s *Session) sendError(reason string) {
	s.sendJSON(errorFrame{Error: reason})
}

// run drives the session through its whole life and returns once it is Rejected or Closed
// and the writer has stopped.
func (s *Session) run(ctx context.Context, rawRoomID, credential string) {
	if !s.handshake(ctx, rawRoomID, credential) {
		return
	}
	go s.writePump()
	s.readPump(ctx)
	s.close()
	<-s.done
}

func (s *Session) handshake(ctx context.Context, rawRoomID, credential string) bool {
	identity, ok := s.h.resolver.Resolve(ctx, credential)
	if !ok {
		s.reject(CloseUnauthenticated, ReasonAuthRequired)
		return false
	}
	roomID, err := strconv.ParseInt(rawRoomID, 10, 64)
	if err != nil || roomID <= 0 {
		s.reject(CloseRoomNotFound, ReasonRoomNotFound)
		return false
	}
	if _, err := s.h.authz.Authorize(ctx, roomID, identity); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			s.reject(CloseRoomNotFound, ReasonRoomNotFound)
		case errors.Is(err, domain.ErrForbidden):
			s.reject(CloseForbidden, "forbidden")
		default:
			s.h.log.Errorw("room authorization failed", "room_id", roomID, "user_id", identity.ID, "error", err)
			s.reject(websocket.CloseInternalServerErr, "internal_error")
		}
		return false
	}

	s.mu.Lock()
	s.identity = identity
	s.roomID = roomID
	s.state = StateOpen
	s.mu.Unlock()

	s.h.hub.Join(roomID, s)
	s.h.opened(s)
	s.sendJSON(newConnectionFrame(roomID))
	s.h.log.Infow("connection accepted", "conn_id", s.id, "room_id", roomID, "user_id", identity.ID)
	return true
}

func (s *Session) reject(code int, reason string) {
	s.mu.Lock()
	s.state = StateRejected
	s.mu.Unlock()

	s.h.metrics.Handshake(reason)
	s.h.log.Infow("connection rejected", "conn_id", s.id, "code", code, "reason", reason)
	deadline := time.Now().Add(s.h.opts.WriteDeadline)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = s.conn.Close()
}

func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(s.h.opts.MaxMessageSize)
	s.extendRead()
	s.conn.SetPongHandler(func(string) error {
		s.extendRead()
		return nil
	})
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.h.log.Debugw("read error", "conn_id", s.id, "error", err)
			}
			return
		}
		s.extendRead()
		if mt != websocket.TextMessage {
			continue
		}
		if s.limiter != nil && !s.limiter.Allow() {
			s.h.metrics.Frame("rate_limited")
			continue
		}
		ev, err := ParseEvent(data)
		if err != nil {
			s.h.metrics.Frame("malformed")
			continue
		}
		s.h.metrics.Frame(ev.Kind.String())
		s.h.router.Route(ctx, s, ev)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		// a dead writer must not leave the reader parked on a silent peer
		s.stopReading()
		_ = s.conn.Close()
		close(s.done)
	}()
	for {
		select {
		case b, ok := <-s.send:
			if !ok {
				deadline := time.Now().Add(s.h.opts.WriteDeadline)
				_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.opts.WriteDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.h.log.Debugw("write error", "conn_id", s.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.opts.WriteDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close moves an open session to Closed and leaves its group. Safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	close(s.send)
	s.mu.Unlock()

	s.h.hub.Leave(s.roomID, s)
	s.h.closed(s)
	s.h.log.Infow("connection closed", "conn_id", s.id, "room_id", s.roomID, "user_id", s.identity.ID)
}

// extendRead pushes the read deadline out by PongWait.
func (s *Session) extendRead() {
	s.rdMu.Lock()
	defer s.rdMu.Unlock()
	if s.stopping {
		return
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.opts.PongWait))
}

// stopReading unblocks a pending ReadMessage. Closing a hijacked fiber connection does not.
func (s *Session) stopReading() {
	s.rdMu.Lock()
	defer s.rdMu.Unlock()
	s.stopping = true
	_ = s.conn.SetReadDeadline(time.Now())
}

// goAway sends 1001 and ends the read loop; close then runs on the session goroutine.
// It holds mu so the connection cannot be released by the server while it is in use.
func (s *Session) goAway() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	deadline := time.Now().Add(s.h.opts.WriteDeadline)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
	s.stopReading()
}
