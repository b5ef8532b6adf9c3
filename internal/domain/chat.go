package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrForbidden      = errors.New("forbidden")
	ErrNotParticipant = errors.New("sender is not a room participant")
	ErrSelfChat       = errors.New("cannot open a chat with yourself")
	ErrEmptyContent   = errors.New("message content is empty")
)

// Room is a two-party chat between a requester (user) and a provider (trainer).
type Room struct {
	ID        int64     `bson:"_id" json:"id"`
	UserID    int64     `bson:"user_id" json:"user"`
	TrainerID int64     `bson:"trainer_id" json:"trainer"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (r *Room) HasParticipant(id int64) bool {
	return id == r.UserID || id == r.TrainerID
}

type Message struct {
	ID        int64     `bson:"_id" json:"id"`
	RoomID    int64     `bson:"room_id" json:"chat_room"`
	SenderID  int64     `bson:"sender_id" json:"sender"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"timestamp"`
	IsRead    bool      `bson:"is_read" json:"is_read"`
}

// User is the stored account record the chat reads display data from.
type User struct {
	ID         int64  `bson:"_id" json:"id"`
	Username   string `bson:"username" json:"username"`
	FirstName  string `bson:"first_name" json:"first_name"`
	LastName   string `bson:"last_name" json:"last_name"`
	AvatarPath string `bson:"profile_picture" json:"profile_picture"`
}

func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// Identity is an authenticated principal with presentation data already resolved.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"name"`
	// AvatarURL is absolute, or empty when the user has no picture.
	AvatarURL string `json:"avatar,omitempty"`
}

// RoomSummary is a room as listed for one participant.
type RoomSummary struct {
	Room        *Room    `json:"room"`
	LastMessage *Message `json:"last_message,omitempty"`
	Unread      int64    `json:"unread_count"`
}
