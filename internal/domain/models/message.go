package models

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
	SenderAgent Sender = "agent"
)

func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAdmin, SenderAgent:
		return true
	default:
		return false
	}
}

// Message неизменяемо после создания, кроме IsRead.
// Seq фиксирует порядок приёма внутри сессии.
type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	Seq       int64     `json:"seq" db:"seq"`
	Sender    Sender    `json:"sender" db:"sender"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
	IsRead    bool      `json:"is_read" db:"is_read"`
}

func NewMessage(sessionID uuid.UUID, seq int64, sender Sender, content string) Message {
	return Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Seq:       seq,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
