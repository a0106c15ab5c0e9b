package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// ChatSession - логический разговор участника с поддержкой.
// Из closed обратно в active не переходит: для нового разговора создаётся новый id.
type ChatSession struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	ParticipantID    string          `json:"participant_id" db:"participant_id"`
	ParticipantName  string          `json:"participant_name" db:"participant_name"`
	// ParticipantEmail - контакт, оставленный гостем при входе
	ParticipantEmail string          `json:"participant_email,omitempty" db:"participant_email"`
	ParticipantKind  ParticipantKind `json:"participant_kind" db:"participant_kind"`
	Status           SessionStatus   `json:"status" db:"status"`
	Messages         []Message       `json:"messages,omitempty" db:"-"`
	LastMessageAt    *time.Time      `json:"last_message_at,omitempty" db:"last_message_at"`
	UnreadCount      int             `json:"unread_count" db:"unread_count"`
	IsOnline         bool            `json:"is_online" db:"-"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

func NewChatSession(p Participant) *ChatSession {
	now := time.Now().UTC()

	return &ChatSession{
		ID:               uuid.New(),
		ParticipantID:    p.ID,
		ParticipantName:  p.DisplayName,
		ParticipantEmail: p.Email,
		ParticipantKind:  p.Kind,
		Status:           SessionActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *ChatSession) IsActive() bool {
	return s.Status == SessionActive
}

// NextSeq - порядковый номер следующего принятого сообщения
func (s *ChatSession) NextSeq() int64 {
	if len(s.Messages) == 0 {
		return 1
	}

	return s.Messages[len(s.Messages)-1].Seq + 1
}

// Append добавляет сообщение в конец истории. Сообщения клиента считаются непрочитанными для поддержки.
func (s *ChatSession) Append(m Message) {
	s.Messages = append(s.Messages, m)

	ts := m.Timestamp
	s.LastMessageAt = &ts
	s.UpdatedAt = ts

	if m.Sender == SenderUser && !m.IsRead {
		s.UnreadCount++
	}
}

// MarkRead помечает прочитанными все сообщения, написанные не reader. Возвращает число изменённых.
func (s *ChatSession) MarkRead(reader Sender) int {
	changed := 0

	for i := range s.Messages {
		if s.Messages[i].Sender == reader || s.Messages[i].IsRead {
			continue
		}

		s.Messages[i].IsRead = true
		changed++
	}

	s.recountUnread()

	return changed
}

// TrimHistory оставляет в памяти только последние limit сообщений; limit <= 0 - без ограничения
func (s *ChatSession) TrimHistory(limit int) {
	if limit <= 0 || len(s.Messages) <= limit {
		return
	}

	s.Messages = slices.Clone(s.Messages[len(s.Messages)-limit:])
}

func (s *ChatSession) recountUnread() {
	unread := 0

	for _, m := range s.Messages {
		if m.Sender == SenderUser && !m.IsRead {
			unread++
		}
	}

	s.UnreadCount = unread
}

func (s *ChatSession) Close() {
	s.Status = SessionClosed
	s.UpdatedAt = time.Now().UTC()
}

// Summary - копия без истории, для дашборда
func (s *ChatSession) Summary() ChatSession {
	c := *s
	c.Messages = nil

	return c
}

// History - копия истории в порядке создания
func (s *ChatSession) History() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)

	return out
}
