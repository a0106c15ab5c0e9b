package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/application/metric"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

// CallUsecase - координатор сигналинга. Единственный владелец CallState и буферов ICE.
type CallUsecase interface {
	Invite(
		ctx context.Context,
		sessionID uuid.UUID,
		caller runtime.Connection,
		callType models.CallType,
		offer *webrtc.SessionDescription,
	) (uuid.UUID, error)
	Offer(ctx context.Context, callID uuid.UUID, sender runtime.Connection, offer webrtc.SessionDescription) error
	Accept(ctx context.Context, callID uuid.UUID, callee runtime.Connection, answer *webrtc.SessionDescription) error
	Answer(ctx context.Context, callID uuid.UUID, sender runtime.Connection, answer webrtc.SessionDescription) error
	Reject(ctx context.Context, callID uuid.UUID, rejecter runtime.Connection) error
	RelayIceCandidate(ctx context.Context, callID uuid.UUID, sender runtime.Connection, candidate webrtc.ICECandidateInit) error
	// End идемпотентен: завершение уже завершённого или неизвестного звонка ничего не делает
	End(ctx context.Context, callID uuid.UUID, by string, reason string) error
	ReportTransportState(ctx context.Context, callID uuid.UUID, reporter runtime.Connection, state models.TransportState) error
	SetMedia(ctx context.Context, callID uuid.UUID, who runtime.Connection, isMuted, isVideoOff bool) error

	EndSession(ctx context.Context, sessionID uuid.UUID, reason string)
	EndForConnection(ctx context.Context, connectionID string)

	ActiveCall(sessionID uuid.UUID) (uuid.UUID, bool)
	// Replay показывает звонящий звонок сокету, подключившемуся во время ringing
	Replay(ctx context.Context, sessionID uuid.UUID, conn runtime.Connection)
	Snapshot(callID uuid.UUID) (models.CallState, bool)
}

type side int

const (
	sideCaller side = iota
	sideCallee
)

type callEntry struct {
	mu    sync.Mutex
	state *models.CallState

	caller runtime.Socket
	callee runtime.Socket

	ringTimer *time.Timer
}

// sideOf определяет, от чьего имени действует подключение.
// Пока вызываемый не принял звонок, за него может говорить любое чужое подключение сессии.
func (e *callEntry) sideOf(conn runtime.Connection) (side, error) {
	st := e.state

	if st.Caller.ConnectionID == conn.ID() {
		return sideCaller, nil
	}

	if st.Callee != nil {
		if st.Callee.ConnectionID == conn.ID() {
			return sideCallee, nil
		}

		return 0, fmt.Errorf("%w: connection is not a party of the call", domain.ErrForbidden)
	}

	if st.IsCaller(conn.Participant.ID) {
		return 0, fmt.Errorf("%w: call is handled by another connection", domain.ErrForbidden)
	}

	return sideCallee, nil
}

func (e *callEntry) peerSocket(s side) runtime.Socket {
	if s == sideCaller {
		return e.callee
	}

	return e.caller
}

type callUsecase struct {
	sessions    SessionUsecase
	ringTimeout time.Duration
	now         func() time.Time

	mu        sync.RWMutex
	calls     map[uuid.UUID]*callEntry
	bySession map[uuid.UUID]uuid.UUID
}

func NewCallUsecase(sessions SessionUsecase, ringTimeout time.Duration) CallUsecase {
	return &callUsecase{
		sessions:    sessions,
		ringTimeout: ringTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		calls:       make(map[uuid.UUID]*callEntry),
		bySession:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (uc *callUsecase) Invite(
	ctx context.Context,
	sessionID uuid.UUID,
	caller runtime.Connection,
	callType models.CallType,
	offer *webrtc.SessionDescription,
) (uuid.UUID, error) {
	if !callType.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unknown call type %q", domain.ErrBadRequest, callType)
	}

	conns, err := uc.sessions.Connections(ctx, sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invite: %w", err)
	}

	state := models.NewCallState(sessionID, partyOf(caller), callType)
	if err = state.Ring(offer); err != nil {
		return uuid.Nil, err
	}

	e := &callEntry{state: state, caller: caller.Socket}

	e.mu.Lock()
	defer e.mu.Unlock()

	uc.mu.Lock()
	if _, ok := uc.bySession[sessionID]; ok {
		uc.mu.Unlock()

		return uuid.Nil, fmt.Errorf("invite: %w", domain.ErrCallAlreadyActive)
	}

	uc.calls[state.ID] = e
	uc.bySession[sessionID] = state.ID
	uc.mu.Unlock()

	callID := state.ID
	e.ringTimer = time.AfterFunc(uc.ringTimeout, func() {
		uc.expire(callID)
	})

	others := othersOf(conns, caller.Participant.ID)

	broadcast(others, events.TypeCallIncoming, incomingEvent(state))

	if offer != nil {
		broadcast(others, events.TypeWebrtcOffer, events.SDPEvent{
			SessionID: sessionID,
			CallID:    callID,
			Payload:   *offer,
		})
	}

	metric.RecordCallStarted(string(callType))

	slog.Info(
		"call invited",
		slog.String(constant.CallID, callID.String()),
		slog.String(constant.SessionID, sessionID.String()),
		slog.String(constant.UserID, caller.Participant.ID),
		slog.Int("recipients", len(others)),
	)

	return callID, nil
}

func (uc *callUsecase) Offer(ctx context.Context, callID uuid.UUID, sender runtime.Connection, offer webrtc.SessionDescription) error {
	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	from, err := e.sideOf(sender)
	if err != nil {
		return err
	}

	st := e.state

	switch st.Status {
	case models.CallRinging:
		if from != sideCaller {
			return fmt.Errorf("%w: only caller offers while ringing", domain.ErrInvalidCallState)
		}

		if err = st.SetOffer(offer); err != nil {
			return err
		}

		conns, err := uc.sessions.Connections(ctx, st.SessionID)
		if err != nil {
			return fmt.Errorf("offer: %w", err)
		}

		broadcast(othersOf(conns, sender.Participant.ID), events.TypeWebrtcOffer, events.SDPEvent{
			SessionID: st.SessionID,
			CallID:    st.ID,
			Payload:   offer,
		})

		return nil

	case models.CallConnecting, models.CallConnected:
		// Перезапуск переговоров на установленном звонке
		return uc.forwardDescription(e, from, offer, webrtc.SDPTypeOffer, events.TypeWebrtcOffer)

	default:
		return fmt.Errorf("%w: offer in %s", domain.ErrInvalidCallState, st.Status)
	}
}

func (uc *callUsecase) Accept(ctx context.Context, callID uuid.UUID, callee runtime.Connection, answer *webrtc.SessionDescription) error {
	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	return uc.acceptLocked(ctx, e, callee, answer)
}

func (uc *callUsecase) acceptLocked(ctx context.Context, e *callEntry, callee runtime.Connection, answer *webrtc.SessionDescription) error {
	if answer != nil {
		if err := models.ValidateDescription(*answer, webrtc.SDPTypeAnswer); err != nil {
			return err
		}
	}

	st := e.state

	drained, err := st.Accept(partyOf(callee))
	if err != nil {
		return err
	}

	e.stopRinging()
	e.callee = callee.Socket

	uc.notifySession(ctx, e, events.TypeCallAccepted, events.CallStatusEvent{
		SessionID: st.SessionID,
		CallID:    st.ID,
		By:        callee.Participant.ID,
	})

	// Вызываемый применил offer: отдаём ему всё, что звонящий прислал раньше
	uc.flush(e.callee, st, drained)

	slog.Info(
		"call accepted",
		slog.String(constant.CallID, st.ID.String()),
		slog.String(constant.UserID, callee.Participant.ID),
		slog.Int("drained", len(drained)),
	)

	if answer != nil {
		return uc.applyAnswerLocked(e, *answer)
	}

	return nil
}

func (uc *callUsecase) Answer(ctx context.Context, callID uuid.UUID, sender runtime.Connection, answer webrtc.SessionDescription) error {
	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	from, err := e.sideOf(sender)
	if err != nil {
		return err
	}

	st := e.state

	switch {
	case st.Status == models.CallRinging && from == sideCallee:
		// answer без отдельного call:accept считается принятием
		return uc.acceptLocked(ctx, e, sender, &answer)

	case st.Status == models.CallConnecting && !st.AnswerApplied() && from == sideCallee:
		return uc.applyAnswerLocked(e, answer)

	case st.AnswerApplied() && st.Active():
		return uc.forwardDescription(e, from, answer, webrtc.SDPTypeAnswer, events.TypeWebrtcAnswer)

	default:
		return fmt.Errorf("%w: answer in %s", domain.ErrInvalidCallState, st.Status)
	}
}

func (uc *callUsecase) applyAnswerLocked(e *callEntry, answer webrtc.SessionDescription) error {
	st := e.state

	drained, err := st.ApplyAnswer(answer)
	if err != nil {
		return err
	}

	send(e.caller, events.TypeWebrtcAnswer, events.SDPEvent{
		SessionID: st.SessionID,
		CallID:    st.ID,
		Payload:   answer,
	})

	uc.flush(e.caller, st, drained)

	return nil
}

func (uc *callUsecase) Reject(ctx context.Context, callID uuid.UUID, rejecter runtime.Connection) error {
	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := e.state

	if st.Status != models.CallRinging {
		return fmt.Errorf("%w: reject in %s", domain.ErrInvalidCallState, st.Status)
	}

	if st.IsCaller(rejecter.Participant.ID) {
		return fmt.Errorf("%w: caller cannot reject own call", domain.ErrInvalidCallState)
	}

	uc.finishLocked(ctx, e, events.TypeCallRejected, rejecter.Participant.ID, models.EndReasonRejected)

	return nil
}

func (uc *callUsecase) RelayIceCandidate(
	ctx context.Context,
	callID uuid.UUID,
	sender runtime.Connection,
	candidate webrtc.ICECandidateInit,
) error {
	if candidate.Candidate == "" {
		return fmt.Errorf("%w: empty candidate", domain.ErrBadRequest)
	}

	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	from, err := e.sideOf(sender)
	if err != nil {
		return err
	}

	forward, err := e.state.RouteCandidate(from == sideCaller, candidate)
	if err != nil {
		return err
	}

	if !forward {
		metric.AddICECandidatesBuffered(1)
		return nil
	}

	send(e.peerSocket(from), events.TypeWebrtcIceCandidate, events.IceCandidateEvent{
		SessionID: e.state.SessionID,
		CallID:    e.state.ID,
		Payload:   candidate,
	})

	return nil
}

func (uc *callUsecase) End(ctx context.Context, callID uuid.UUID, by string, reason string) error {
	e, ok := uc.get(callID)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	uc.finishLocked(ctx, e, events.TypeCallEnded, by, reason)

	return nil
}

func (uc *callUsecase) ReportTransportState(
	ctx context.Context,
	callID uuid.UUID,
	reporter runtime.Connection,
	state models.TransportState,
) error {
	if !state.Valid() {
		return fmt.Errorf("%w: unknown transport state %q", domain.ErrBadRequest, state)
	}

	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if _, err = e.sideOf(reporter); err != nil {
		return err
	}

	st := e.state

	if state == models.TransportConnected {
		if err = st.MarkConnected(uc.now()); err != nil {
			return err
		}

		slog.Info("call connected", slog.String(constant.CallID, st.ID.String()))

		return nil
	}

	if !st.Active() {
		return nil
	}

	caller, callee := e.caller, e.callee

	uc.finishLocked(ctx, e, events.TypeCallEnded, reporter.Participant.ID, models.EndReasonTransportFailure)

	// Сбой транспорта завершает звонок, но не сессию
	failure := events.ErrorEvent{
		Op:          events.TypeCallTransport,
		Code:        domain.Code(domain.ErrTransportFailure),
		Message:     fmt.Sprintf("call transport %s", state),
		Recoverable: true,
	}

	for _, socket := range lo.Compact([]runtime.Socket{caller, callee}) {
		send(socket, events.TypeError, failure)
	}

	slog.Warn(
		"call transport failure",
		slog.String(constant.CallID, st.ID.String()),
		slog.String(constant.State, string(state)),
	)

	return nil
}

func (uc *callUsecase) SetMedia(ctx context.Context, callID uuid.UUID, who runtime.Connection, isMuted, isVideoOff bool) error {
	e, err := uc.lock(callID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	from, err := e.sideOf(who)
	if err != nil {
		return err
	}

	st := e.state
	if !st.Active() {
		return fmt.Errorf("%w: media in %s", domain.ErrInvalidCallState, st.Status)
	}

	st.IsMuted = isMuted
	st.IsVideoOff = isVideoOff

	if peer := e.peerSocket(from); peer != nil {
		send(peer, events.TypeCallMedia, events.CallMediaEvent{
			SessionID:     st.SessionID,
			IsMuted:       isMuted,
			IsVideoOff:    isVideoOff,
			ParticipantID: who.Participant.ID,
		})
	}

	return nil
}

func (uc *callUsecase) EndSession(ctx context.Context, sessionID uuid.UUID, reason string) {
	callID, ok := uc.ActiveCall(sessionID)
	if !ok {
		return
	}

	if err := uc.End(ctx, callID, "", reason); err != nil {
		slog.Error("end session call", slog.Any(constant.Error, err), slog.String(constant.CallID, callID.String()))
	}
}

// EndForConnection - обрыв сокета посреди звонка равен положенной трубке
func (uc *callUsecase) EndForConnection(ctx context.Context, connectionID string) {
	uc.mu.RLock()
	entries := lo.Values(uc.calls)
	uc.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()

		if e.state.Active() && e.state.IsPartyConnection(connectionID) {
			by := e.state.Caller.ParticipantID
			if e.state.Caller.ConnectionID != connectionID && e.state.Callee != nil {
				by = e.state.Callee.ParticipantID
			}

			uc.finishLocked(ctx, e, events.TypeCallEnded, by, models.EndReasonDisconnected)
		}

		e.mu.Unlock()
	}
}

func (uc *callUsecase) ActiveCall(sessionID uuid.UUID) (uuid.UUID, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	id, ok := uc.bySession[sessionID]

	return id, ok
}

func (uc *callUsecase) Replay(ctx context.Context, sessionID uuid.UUID, conn runtime.Connection) {
	callID, ok := uc.ActiveCall(sessionID)
	if !ok {
		return
	}

	e, ok := uc.get(callID)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	if st.Status != models.CallRinging || st.IsCaller(conn.Participant.ID) {
		return
	}

	send(conn.Socket, events.TypeCallIncoming, incomingEvent(st))

	if st.PendingOffer != nil {
		send(conn.Socket, events.TypeWebrtcOffer, events.SDPEvent{
			SessionID: st.SessionID,
			CallID:    st.ID,
			Payload:   *st.PendingOffer,
		})
	}
}

func (uc *callUsecase) Snapshot(callID uuid.UUID) (models.CallState, bool) {
	e, ok := uc.get(callID)
	if !ok {
		return models.CallState{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return *e.state, true
}

func (uc *callUsecase) expire(callID uuid.UUID) {
	e, ok := uc.get(callID)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status != models.CallRinging {
		return
	}

	uc.finishLocked(context.Background(), e, events.TypeCallEnded, "", models.EndReasonNoAnswer)
}

// finishLocked переводит звонок в ended, освобождает его и уведомляет сессию. Вызывается под e.mu.
func (uc *callUsecase) finishLocked(ctx context.Context, e *callEntry, eventType, by, reason string) {
	st := e.state
	now := uc.now()

	if !st.End(now, reason) {
		return
	}

	e.stopRinging()

	uc.mu.Lock()
	delete(uc.calls, st.ID)
	if uc.bySession[st.SessionID] == st.ID {
		delete(uc.bySession, st.SessionID)
	}
	uc.mu.Unlock()

	duration := st.Duration(now)

	uc.notifySession(ctx, e, eventType, events.CallStatusEvent{
		SessionID:       st.SessionID,
		CallID:          st.ID,
		By:              by,
		Reason:          reason,
		DurationSeconds: int64(duration.Seconds()),
	})

	metric.RecordCallEnded(reason, duration)

	slog.Info(
		"call ended",
		slog.String(constant.CallID, st.ID.String()),
		slog.String(constant.SessionID, st.SessionID.String()),
		slog.String(constant.Reason, reason),
		slog.Duration("duration", duration),
	)
}

// notifySession раздаёт событие всем сокетам сессии и обеим сторонам звонка
func (uc *callUsecase) notifySession(ctx context.Context, e *callEntry, eventType string, payload any) {
	conns, err := uc.sessions.Connections(ctx, e.state.SessionID)
	if err != nil {
		slog.Debug("call notify without session", slog.Any(constant.Error, err))
	}

	targets := lo.SliceToMap(conns, func(c runtime.Connection) (string, runtime.Socket) {
		return c.ID(), c.Socket
	})

	for _, socket := range lo.Compact([]runtime.Socket{e.caller, e.callee}) {
		targets[socket.ID()] = socket
	}

	msg, err := events.New(eventType, payload)
	if err != nil {
		slog.Error("encode event", slog.Any(constant.Error, err), slog.String(constant.EventType, eventType))
		return
	}

	for _, socket := range targets {
		deliver(socket, msg)
	}
}

func (uc *callUsecase) forwardDescription(
	e *callEntry,
	from side,
	sd webrtc.SessionDescription,
	want webrtc.SDPType,
	eventType string,
) error {
	if err := models.ValidateDescription(sd, want); err != nil {
		return err
	}

	peer := e.peerSocket(from)
	if peer == nil {
		return fmt.Errorf("%w: no peer to forward to", domain.ErrInvalidCallState)
	}

	send(peer, eventType, events.SDPEvent{
		SessionID: e.state.SessionID,
		CallID:    e.state.ID,
		Payload:   sd,
	})

	return nil
}

// flush отдаёт слитый буфер в порядке поступления
func (uc *callUsecase) flush(socket runtime.Socket, st *models.CallState, candidates []webrtc.ICECandidateInit) {
	for _, c := range candidates {
		send(socket, events.TypeWebrtcIceCandidate, events.IceCandidateEvent{
			SessionID: st.SessionID,
			CallID:    st.ID,
			Payload:   c,
		})
	}
}

func (uc *callUsecase) get(callID uuid.UUID) (*callEntry, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	e, ok := uc.calls[callID]

	return e, ok
}

// lock возвращает живой звонок под его мьютексом
func (uc *callUsecase) lock(callID uuid.UUID) (*callEntry, error) {
	e, ok := uc.get(callID)
	if !ok {
		return nil, domain.ErrCallNotFound
	}

	e.mu.Lock()

	return e, nil
}

func (e *callEntry) stopRinging() {
	if e.ringTimer != nil {
		e.ringTimer.Stop()
		e.ringTimer = nil
	}
}

func partyOf(conn runtime.Connection) models.Party {
	return models.Party{
		ParticipantID: conn.Participant.ID,
		DisplayName:   conn.Participant.DisplayName,
		ConnectionID:  conn.ID(),
	}
}

func othersOf(conns []runtime.Connection, participantID string) []runtime.Connection {
	return lo.Filter(conns, func(c runtime.Connection, _ int) bool {
		return c.Participant.ID != participantID
	})
}

func incomingEvent(st *models.CallState) events.CallIncomingEvent {
	return events.CallIncomingEvent{
		SessionID:  st.SessionID,
		CallID:     st.ID,
		CallerID:   st.Caller.ParticipantID,
		CallerName: st.Caller.DisplayName,
		CallType:   st.CallType,
	}
}
