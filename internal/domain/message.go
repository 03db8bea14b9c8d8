package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a chat message as stored. Immutable once created; the store
// assigns ID on append.
type Message struct {
	ID          int64     `json:"id"`
	RoomCode    string    `json:"room_code"`
	SenderID    uuid.UUID `json:"sender_id"`
	SenderEmail string    `json:"sender_email"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayMessage is the client-facing shape used both for live broadcasts
// and for history replay.
type DisplayMessage struct {
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DisplayTimeFormat matches ISO-8601 with millisecond precision in UTC.
const DisplayTimeFormat = "2006-01-02T15:04:05.000Z07:00"

func (m *Message) Display() DisplayMessage {
	return DisplayMessage{
		User:      m.SenderEmail,
		Message:   m.Content,
		Timestamp: m.CreatedAt.UTC().Format(DisplayTimeFormat),
	}
}
