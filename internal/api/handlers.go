package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
)

func roomParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("room_id")
	if err != nil || id <= 0 {
		return 0, domain.ErrRoomNotFound
	}
	return int64(id), nil
}

func (s *Server) listRooms(c *fiber.Ctx) error {
	rooms, err := s.chat.Rooms(c.UserContext(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(rooms)
}

type openRoomRequest struct {
	Trainer int64 `json:"trainer"`
	User    int64 `json:"user"`
}

// openRoom starts (or returns) the room with the named peer. A member names the
// trainer; a trainer names the member.
func (s *Server) openRoom(c *fiber.Ctx) error {
	var req openRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	caller := callerID(c)

	var userID, trainerID int64
	switch {
	case req.Trainer > 0:
		userID, trainerID = caller, req.Trainer
	case req.User > 0:
		userID, trainerID = req.User, caller
	default:
		return fiber.NewError(fiber.StatusBadRequest, "trainer or user is required")
	}

	room, created, err := s.chat.OpenRoom(c.UserContext(), userID, trainerID)
	if err != nil {
		return err
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(room)
	}
	return c.JSON(room)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	msgs, err := s.chat.History(c.UserContext(), roomID, callerID(c), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

func (s *Server) markRead(c *fiber.Ctx) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	n, err := s.chat.MarkRead(c.UserContext(), roomID, callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": n})
}

func (s *Server) getPresence(c *fiber.Ctx) error {
	uid, err := c.ParamsInt("user_id")
	if err != nil || uid <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	ctx := c.UserContext()
	p, err := s.presence.GetPresence(ctx, int64(uid))
	if err != nil {
		return err
	}
	body := fiber.Map{"user_id": uid, "online": p.Online(), "status": p.Status, "last_seen": p.LastSeen, "connections": 0}
	if p.Online() {
		conns, err := s.presence.Connections(ctx, int64(uid))
		if err != nil {
			return err
		}
		body["connections"] = len(conns)
	}
	return c.JSON(body)
}
