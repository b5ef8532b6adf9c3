package ws

import (
	"encoding/json"
	"strconv"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/utils"
)

// Error frame reasons sent to the originating connection only.
const (
	ReasonAuthRequired = "auth_required"
	ReasonRoomNotFound = "room_not_found"
)

type connectionFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	RoomID string `json:"room_id"`
}

func newConnectionFrame(roomID int64) connectionFrame {
	return connectionFrame{Type: "connection", Status: "connected", RoomID: strconv.FormatInt(roomID, 10)}
}

type errorFrame struct {
	Error string `json:"error"`
}

// ChatMessageFrame is a persisted message as broadcast to the room.
type ChatMessageFrame struct {
	Type         string  `json:"type"`
	ID           int64   `json:"id"`
	Room         int64   `json:"chat_room"`
	Sender       int64   `json:"sender"`
	SenderName   string  `json:"sender_name"`
	SenderAvatar *string `json:"sender_avatar"`
	Content      string  `json:"content"`
	Timestamp    string  `json:"timestamp"`
}

func newChatMessageFrame(m *domain.Message, sender *domain.Identity) ChatMessageFrame {
	f := ChatMessageFrame{
		Type:       "message",
		ID:         m.ID,
		Room:       m.RoomID,
		Sender:     sender.ID,
		SenderName: sender.DisplayName,
		Content:    m.Content,
		Timestamp:  utils.ISO8601(m.CreatedAt),
	}
	if sender.AvatarURL != "" {
		avatar := sender.AvatarURL
		f.SenderAvatar = &avatar
	}
	return f
}

type typingFrame struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// signalFrame relays a call-signaling payload untouched, stamped with the sender's id.
// A client supplied sender field is overwritten.
func signalFrame(ev Event, senderID int64) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(ev.Fields)+1)
	for k, v := range ev.Fields {
		out[k] = v
	}
	out["sender"] = json.RawMessage(strconv.FormatInt(senderID, 10))
	return out
}
