package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/GoldLink/internal/domain"
)

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type CallStatus string

const (
	CallIdle       CallStatus = "idle"
	CallRinging    CallStatus = "ringing"
	CallConnecting CallStatus = "connecting"
	CallConnected  CallStatus = "connected"
	CallEnded      CallStatus = "ended"
)

// TransportState - состояние медиа транспорта, которое сообщает клиент.
// Значения совпадают с именами webrtc.PeerConnectionState.
type TransportState string

var (
	TransportConnected    = TransportState(webrtc.PeerConnectionStateConnected.String())
	TransportFailed       = TransportState(webrtc.PeerConnectionStateFailed.String())
	TransportDisconnected = TransportState(webrtc.PeerConnectionStateDisconnected.String())
)

func (s TransportState) Valid() bool {
	return s == TransportConnected || s == TransportFailed || s == TransportDisconnected
}

// Причины завершения звонка
const (
	EndReasonHangup           = "hangup"
	EndReasonRejected         = "rejected"
	EndReasonNoAnswer         = "no_answer"
	EndReasonTransportFailure = "transport_failure"
	EndReasonDisconnected     = "disconnected"
	EndReasonSessionClosed    = "session_closed"
)

// Party - сторона звонка: участник и конкретное подключение (вкладка), ведущее переговоры
type Party struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	ConnectionID  string `json:"connection_id"`
}

// CallState принадлежит координатору звонков и меняется только через его методы.
// Сам по себе не потокобезопасен.
type CallState struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	CallType    CallType   `json:"call_type"`
	Status      CallStatus `json:"status"`
	Caller      Party      `json:"caller"`
	Callee      *Party     `json:"callee,omitempty"`
	IsMuted     bool       `json:"is_muted"`
	IsVideoOff  bool       `json:"is_video_off"`
	CreatedAt   time.Time  `json:"created_at"`
	ConnectedAt time.Time  `json:"connected_at"`
	EndedAt     time.Time  `json:"ended_at"`
	EndReason   string     `json:"end_reason,omitempty"`

	// PendingOffer ждёт, пока вызываемый его примет; очищается при принятии
	PendingOffer *webrtc.SessionDescription `json:"-"`

	toCaller IceCandidateBuffer
	toCallee IceCandidateBuffer

	callerRemoteSet bool
	calleeRemoteSet bool
}

func NewCallState(sessionID uuid.UUID, caller Party, callType CallType) *CallState {
	return &CallState{
		ID:        uuid.New(),
		SessionID: sessionID,
		CallType:  callType,
		Status:    CallIdle,
		Caller:    caller,
		CreatedAt: time.Now().UTC(),
	}
}

// Ring: idle -> ringing. offer может прийти позже отдельным событием.
func (c *CallState) Ring(offer *webrtc.SessionDescription) error {
	if c.Status != CallIdle {
		return fmt.Errorf("%w: ring from %s", domain.ErrInvalidCallState, c.Status)
	}

	if offer != nil {
		if err := ValidateDescription(*offer, webrtc.SDPTypeOffer); err != nil {
			return err
		}
	}

	c.PendingOffer = offer
	c.Status = CallRinging

	return nil
}

// SetOffer сохраняет offer, присланный после приглашения
func (c *CallState) SetOffer(offer webrtc.SessionDescription) error {
	if err := ValidateDescription(offer, webrtc.SDPTypeOffer); err != nil {
		return err
	}

	if c.Status != CallRinging || c.PendingOffer != nil {
		return fmt.Errorf("%w: offer in %s", domain.ErrInvalidCallState, c.Status)
	}

	c.PendingOffer = &offer

	return nil
}

// Accept: ringing -> connecting. Вызываемый применил offer, поэтому его буфер сливается.
func (c *CallState) Accept(callee Party) ([]webrtc.ICECandidateInit, error) {
	if c.Status != CallRinging {
		return nil, fmt.Errorf("%w: accept in %s", domain.ErrInvalidCallState, c.Status)
	}

	if callee.ParticipantID == c.Caller.ParticipantID {
		return nil, fmt.Errorf("%w: caller cannot accept own call", domain.ErrInvalidCallState)
	}

	c.Callee = &callee
	c.Status = CallConnecting
	c.PendingOffer = nil
	c.calleeRemoteSet = true

	return c.toCallee.Drain(), nil
}

// ApplyAnswer фиксирует answer вызываемого; у звонящего появляется remote description.
func (c *CallState) ApplyAnswer(answer webrtc.SessionDescription) ([]webrtc.ICECandidateInit, error) {
	if err := ValidateDescription(answer, webrtc.SDPTypeAnswer); err != nil {
		return nil, err
	}

	if c.Status != CallConnecting || c.callerRemoteSet {
		return nil, fmt.Errorf("%w: answer in %s", domain.ErrInvalidCallState, c.Status)
	}

	c.callerRemoteSet = true

	return c.toCaller.Drain(), nil
}

// RouteCandidate решает судьбу кандидата от стороны fromCaller:
// true - переслать сразу, false - отложен в буфер получателя.
func (c *CallState) RouteCandidate(fromCaller bool, cand webrtc.ICECandidateInit) (bool, error) {
	if !c.Active() {
		return false, fmt.Errorf("%w: candidate in %s", domain.ErrInvalidCallState, c.Status)
	}

	if fromCaller {
		if c.calleeRemoteSet {
			return true, nil
		}

		return false, c.push(&c.toCallee, cand)
	}

	if c.callerRemoteSet {
		return true, nil
	}

	return false, c.push(&c.toCaller, cand)
}

func (c *CallState) push(b *IceCandidateBuffer, cand webrtc.ICECandidateInit) error {
	if !b.Push(cand) {
		return fmt.Errorf("%w: buffer already drained", domain.ErrInvalidCallState)
	}

	return nil
}

// MarkConnected: connecting -> connected, старт учёта длительности
func (c *CallState) MarkConnected(now time.Time) error {
	if c.Status == CallConnected {
		return nil
	}

	if c.Status != CallConnecting {
		return fmt.Errorf("%w: connected in %s", domain.ErrInvalidCallState, c.Status)
	}

	c.Status = CallConnected
	c.ConnectedAt = now

	return nil
}

// End переводит звонок в ended из любого состояния. Возвращает false, если уже завершён.
func (c *CallState) End(now time.Time, reason string) bool {
	if c.Status == CallEnded {
		return false
	}

	c.Status = CallEnded
	c.EndedAt = now
	c.EndReason = reason
	c.PendingOffer = nil
	c.toCaller.Discard()
	c.toCallee.Discard()

	return true
}

// AnswerApplied - у звонящего уже установлен answer вызываемого
func (c *CallState) AnswerApplied() bool {
	return c.callerRemoteSet
}

func (c *CallState) Active() bool {
	return c.Status != CallEnded
}

// Duration - длительность соединённой части звонка
func (c *CallState) Duration(now time.Time) time.Duration {
	if c.ConnectedAt.IsZero() {
		return 0
	}

	if !c.EndedAt.IsZero() {
		now = c.EndedAt
	}

	return now.Sub(c.ConnectedAt)
}

func (c *CallState) IsCaller(participantID string) bool {
	return c.Caller.ParticipantID == participantID
}

func (c *CallState) IsCallee(participantID string) bool {
	return c.Callee != nil && c.Callee.ParticipantID == participantID
}

// IsPartyConnection - ведёт ли подключение переговоры в этом звонке
func (c *CallState) IsPartyConnection(connectionID string) bool {
	if c.Caller.ConnectionID == connectionID {
		return true
	}

	return c.Callee != nil && c.Callee.ConnectionID == connectionID
}

// BufferedCandidates - сколько кандидатов ждёт в обоих направлениях
func (c *CallState) BufferedCandidates() int {
	return c.toCaller.Len() + c.toCallee.Len()
}

func ValidateDescription(sd webrtc.SessionDescription, want webrtc.SDPType) error {
	if sd.Type != want {
		return fmt.Errorf("%w: expected %s, got %s", domain.ErrBadRequest, want, sd.Type)
	}

	if sd.SDP == "" {
		return fmt.Errorf("%w: empty sdp", domain.ErrBadRequest)
	}

	return nil
}
