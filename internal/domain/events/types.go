package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/GoldLink/internal/domain/models"
)

// Входящие события
const (
	TypeJoin         = "join"
	TypeJoinSession  = "join-session"
	TypeSessionClose = "session:close"
	TypePing         = "ping"

	TypeCallInvite    = "call:invite"
	TypeCallAccept    = "call:accept"
	TypeCallReject    = "call:reject"
	TypeCallEnd       = "call:end"
	TypeCallTransport = "call:transport"
)

// Исходящие события
const (
	TypeJoined        = "joined"
	TypeChatHistory   = "chat:history"
	TypeChatAck       = "chat:ack"
	TypeChatFailed    = "chat:failed"
	TypeUserOnline    = "user:online"
	TypeUserOffline   = "user:offline"
	TypeCallIncoming  = "call:incoming"
	TypeCallAccepted  = "call:accepted"
	TypeCallRejected  = "call:rejected"
	TypeCallEnded     = "call:ended"
	TypeSessionClosed = "session:closed"
	TypeError         = "error"
	TypePong          = "pong"
)

// Двунаправленные события
const (
	TypeChatMessage = "chat:message"
	TypeChatTyping  = "chat:typing"
	TypeChatRead    = "chat:read"
	TypeCallMedia   = "call:media"

	TypeWebrtcOffer        = "webrtc:offer"
	TypeWebrtcAnswer       = "webrtc:answer"
	TypeWebrtcIceCandidate = "webrtc:ice-candidate"
)

// Message - общее событие
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New упаковывает payload в событие
func New(eventType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: eventType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Message{Type: eventType, Data: data}, nil
}

// JoinEvent - подключение к чату. Identity - гостевой id, сохранённый вкладкой.
type JoinEvent struct {
	Identity   string `json:"identity" validate:"omitempty,max=64"`
	GuestName  string `json:"guestName" validate:"omitempty,max=80"`
	GuestEmail string `json:"guestEmail" validate:"omitempty,email"`
}

// JoinedEvent - ответ на join; клиент сохраняет participantId как гостевой id вкладки
type JoinedEvent struct {
	SessionID     *uuid.UUID `json:"sessionId,omitempty"`
	ParticipantID string     `json:"participantId"`
	DisplayName   string     `json:"displayName"`
	Kind          string     `json:"kind"`
	Role          string     `json:"role"`
}

// SessionRef - события, адресованные сессии без дополнительных данных
type SessionRef struct {
	SessionID uuid.UUID `json:"sessionId" validate:"required"`
	Reason    string    `json:"reason,omitempty"`
}

type ChatMessageEvent struct {
	SessionID       uuid.UUID `json:"sessionId" validate:"required"`
	Content         string    `json:"content" validate:"required,max=4000"`
	Sender          string    `json:"sender,omitempty"`
	ClientMessageID string    `json:"clientMessageId,omitempty" validate:"omitempty,max=64"`
}

// ChatMessage - сообщение в исходящем формате
type ChatMessage struct {
	ID        uuid.UUID     `json:"id"`
	SessionID uuid.UUID     `json:"sessionId"`
	Seq       int64         `json:"seq"`
	Sender    models.Sender `json:"sender"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	IsRead    bool          `json:"isRead"`
}

func NewChatMessage(m models.Message) ChatMessage {
	return ChatMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		Seq:       m.Seq,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		IsRead:    m.IsRead,
	}
}

// ChatHistoryEvent - история сессии, отправляется только подключившемуся сокету
type ChatHistoryEvent struct {
	SessionID uuid.UUID     `json:"sessionId"`
	Messages  []ChatMessage `json:"messages"`
}

func NewChatHistory(sessionID uuid.UUID, messages []models.Message) ChatHistoryEvent {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, NewChatMessage(m))
	}

	return ChatHistoryEvent{SessionID: sessionID, Messages: out}
}

type ChatAckEvent struct {
	ClientMessageID string    `json:"clientMessageId,omitempty"`
	MessageID       uuid.UUID `json:"messageId"`
	Seq             int64     `json:"seq"`
}

type ChatFailedEvent struct {
	ClientMessageID string `json:"clientMessageId,omitempty"`
	Code            string `json:"code"`
}

type TypingEvent struct {
	SessionID     uuid.UUID `json:"sessionId" validate:"required"`
	IsTyping      bool      `json:"isTyping"`
	ParticipantID string    `json:"participantId,omitempty"`
}

type ReadEvent struct {
	SessionID uuid.UUID     `json:"sessionId"`
	ReaderID  string        `json:"readerId"`
	Reader    models.Sender `json:"reader"`
	Count     int           `json:"count"`
}

type PresenceEvent struct {
	UserID string `json:"userId"`
}

type CallInviteEvent struct {
	SessionID uuid.UUID                  `json:"sessionId" validate:"required"`
	CallType  string                     `json:"callType" validate:"required,oneof=audio video"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
}

type CallAcceptEvent struct {
	SessionID uuid.UUID                  `json:"sessionId" validate:"required"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
}

type CallMediaEvent struct {
	SessionID     uuid.UUID `json:"sessionId" validate:"required"`
	IsMuted       bool      `json:"isMuted"`
	IsVideoOff    bool      `json:"isVideoOff"`
	ParticipantID string    `json:"participantId,omitempty"`
}

type CallTransportEvent struct {
	SessionID uuid.UUID `json:"sessionId" validate:"required"`
	State     string    `json:"state" validate:"required,oneof=connected failed disconnected"`
}

type CallIncomingEvent struct {
	SessionID  uuid.UUID       `json:"sessionId"`
	CallID     uuid.UUID       `json:"callId"`
	CallerID   string          `json:"callerId"`
	CallerName string          `json:"callerName"`
	CallType   models.CallType `json:"callType"`
}

// CallStatusEvent - call:accepted, call:rejected, call:ended
type CallStatusEvent struct {
	SessionID       uuid.UUID `json:"sessionId"`
	CallID          uuid.UUID `json:"callId"`
	By              string    `json:"by,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	DurationSeconds int64     `json:"durationSeconds,omitempty"`
}

// SDPEvent - webrtc:offer и webrtc:answer
type SDPEvent struct {
	SessionID uuid.UUID                 `json:"sessionId" validate:"required"`
	CallID    uuid.UUID                 `json:"callId,omitempty"`
	Payload   webrtc.SessionDescription `json:"payload"`
}

// IceCandidateEvent - webrtc:ice-candidate
type IceCandidateEvent struct {
	SessionID uuid.UUID               `json:"sessionId" validate:"required"`
	CallID    uuid.UUID               `json:"callId,omitempty"`
	Payload   webrtc.ICECandidateInit `json:"payload"`
}

type ErrorEvent struct {
	Op          string `json:"op"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}
