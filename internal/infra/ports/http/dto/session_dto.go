package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/domain/models"
)

type SessionResponse struct {
	ID               uuid.UUID  `json:"id"`
	ParticipantID    string     `json:"participant_id"`
	ParticipantName  string     `json:"participant_name"`
	ParticipantEmail string     `json:"participant_email,omitempty"`
	ParticipantKind  string     `json:"participant_kind"`
	Status           string     `json:"status"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	UnreadCount      int        `json:"unread_count"`
	IsOnline         bool       `json:"is_online"`
	HasActiveCall    bool       `json:"has_active_call"`
	CreatedAt        time.Time  `json:"created_at"`
}

func NewSessionResponseFromModel(s models.ChatSession, hasActiveCall bool) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		ParticipantID:    s.ParticipantID,
		ParticipantName:  s.ParticipantName,
		ParticipantEmail: s.ParticipantEmail,
		ParticipantKind:  string(s.ParticipantKind),
		Status:           string(s.Status),
		LastMessageAt:    s.LastMessageAt,
		UnreadCount:      s.UnreadCount,
		IsOnline:         s.IsOnline,
		HasActiveCall:    hasActiveCall,
		CreatedAt:        s.CreatedAt,
	}
}

type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	Seq       int64     `json:"seq"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}

type ListMessagesResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Messages  []MessageResponse `json:"messages"`
}

func NewListMessagesResponse(sessionID uuid.UUID, messages []models.Message) ListMessagesResponse {
	resp := ListMessagesResponse{
		SessionID: sessionID,
		Messages:  make([]MessageResponse, 0, len(messages)),
	}

	for _, m := range messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        m.ID,
			Seq:       m.Seq,
			Sender:    string(m.Sender),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			IsRead:    m.IsRead,
		})
	}

	return resp
}

type OnlineParticipant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Role        string `json:"role"`
}

type OnlineParticipantsResponse struct {
	Participants []OnlineParticipant `json:"participants"`
}
