package chat

import (
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

// Room types
const (
	RoomDirect = "direct"
	RoomGroup  = "group"
	RoomCourse = "course"
)

const (
	MaxMessageLen   = 4000
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type (
	Room struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		RoomType    string    `json:"room_type"`
		CourseID    string    `json:"course_id"`
		CreatedBy   string    `json:"created_by"`
		CreatedAt   time.Time `json:"created_at"`
		Members     []Member  `json:"members,omitempty"`
		UnreadCount int       `json:"unread_count"`
	}

	Member struct {
		RoomID     string     `json:"room_id"`
		UserID     string     `json:"user_id"`
		FullName   string     `json:"full_name"`
		AvatarURL  string     `json:"avatar_url"`
		JoinedAt   time.Time  `json:"joined_at"`
		LastReadAt *time.Time `json:"last_read_at"`
	}

	Message struct {
		ID         string    `json:"id"`
		RoomID     string    `json:"room_id"`
		SenderID   string    `json:"sender_id"`
		SenderName string    `json:"sender_name"`
		Content    string    `json:"content"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// Event is what subscribers of a room channel receive. UserID names the member of a
	// member_removed event.
	Event struct {
		Type    string   `json:"type"`
		Message *Message `json:"message,omitempty"`
		UserID  string   `json:"user_id,omitempty"`
	}
)

// Event types
const (
	EventMessage       = "message"
	EventMemberRemoved = "member_removed"
)

type NewRoom struct {
	Name      string   `json:"name" validate:"omitempty,max=200"`
	RoomType  string   `json:"room_type" validate:"required,oneof=direct group course"`
	MemberIDs []string `json:"member_ids" validate:"omitempty,uuids"`
	CourseID  string   `json:"course_id" validate:"omitempty,uuid"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.RoomType = core.CleanString(nr.RoomType, true /* lower */)
	return validate.Struct(nr)
}

type NewMessage struct {
	Content string `json:"content"`
}

// clean trims the content and checks its length.
func (nm *NewMessage) clean() error {
	nm.Content = core.CleanString(nm.Content)
	if n := utf8.RuneCountInString(nm.Content); n == 0 || n > MaxMessageLen {
		return core.NewFieldError("content", "a message must contain between 1 and 4000 characters")
	}
	return nil
}

type AddMember struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type MessageFilter struct {
	Before time.Time `query:"before"`
	Limit  int       `query:"limit"`
}

func (f *MessageFilter) Clean() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	} else if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
}

// Channel is the broker channel of a room.
func Channel(roomID string) string {
	return "chat:room:" + roomID
}
