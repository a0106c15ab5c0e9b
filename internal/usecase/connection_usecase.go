package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionJoined       ConnectionStatus = "joined"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// ConnectionUsecase - жизненный цикл сокета: join, join-session и гарантированная уборка при отключении
type ConnectionUsecase interface {
	Open(socket runtime.Socket)
	OnJoin(ctx context.Context, socketID string, creds Credentials) (runtime.Connection, error)
	OnJoinSession(ctx context.Context, socketID string, sessionID uuid.UUID) error
	// OnDisconnect безопасно вызывать повторно и с любого пути завершения
	OnDisconnect(ctx context.Context, socketID string)

	// Authorize возвращает подключение, если оно присоединено к сессии
	Authorize(socketID string, sessionID uuid.UUID) (runtime.Connection, error)
	Status(socketID string) ConnectionStatus

	// CloseSession завершает звонок сессии и закрывает её
	CloseSession(ctx context.Context, sessionID uuid.UUID) error
}

type connState struct {
	mu sync.Mutex

	socket      runtime.Socket
	status      ConnectionStatus
	participant models.Participant
	sessions    map[uuid.UUID]struct{}
}

func (cs *connState) connection() runtime.Connection {
	return runtime.Connection{Socket: cs.socket, Participant: cs.participant}
}

type connectionUsecase struct {
	identity IdentityUsecase
	sessions SessionUsecase
	calls    CallUsecase
	presence PresenceUsecase

	mu    sync.RWMutex
	conns map[string]*connState
}

func NewConnectionUsecase(
	identity IdentityUsecase,
	sessions SessionUsecase,
	calls CallUsecase,
	presence PresenceUsecase,
) ConnectionUsecase {
	return &connectionUsecase{
		identity: identity,
		sessions: sessions,
		calls:    calls,
		presence: presence,
		conns:    make(map[string]*connState),
	}
}

func (uc *connectionUsecase) Open(socket runtime.Socket) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.conns[socket.ID()] = &connState{
		socket:   socket,
		status:   ConnectionConnecting,
		sessions: make(map[uuid.UUID]struct{}),
	}
}

func (uc *connectionUsecase) OnJoin(ctx context.Context, socketID string, creds Credentials) (runtime.Connection, error) {
	cs, err := uc.state(socketID)
	if err != nil {
		return runtime.Connection{}, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.status != ConnectionConnecting {
		return runtime.Connection{}, fmt.Errorf("%w: connection is %s", domain.ErrBadRequest, cs.status)
	}

	p, err := uc.identity.Resolve(ctx, creds)
	if err != nil {
		return runtime.Connection{}, fmt.Errorf("resolve identity: %w", err)
	}

	cs.participant = p
	conn := cs.connection()

	joined := events.JoinedEvent{
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		Kind:          string(p.Kind),
		Role:          string(p.Role),
	}

	// Поддержка не получает собственной сессии, она подключается к чужим через join-session
	if !p.IsAdmin() {
		session, err := uc.sessions.GetOrCreateSession(ctx, p)
		if err != nil {
			return runtime.Connection{}, fmt.Errorf("get or create session: %w", err)
		}

		joined.SessionID = &session.ID
		send(cs.socket, events.TypeJoined, joined)

		if err = uc.sessions.AttachSocket(ctx, session.ID, conn); err != nil {
			return runtime.Connection{}, fmt.Errorf("attach socket: %w", err)
		}

		cs.sessions[session.ID] = struct{}{}
		cs.status = ConnectionJoined

		uc.presence.OnConnect(ctx, conn)
		uc.calls.Replay(ctx, session.ID, conn)
	} else {
		send(cs.socket, events.TypeJoined, joined)

		cs.status = ConnectionJoined
		uc.presence.OnConnect(ctx, conn)
	}

	slog.Info(
		"connection joined",
		slog.String(constant.ConnectionID, socketID),
		slog.String(constant.UserID, p.ID),
		slog.String("kind", string(p.Kind)),
	)

	return conn, nil
}

func (uc *connectionUsecase) OnJoinSession(ctx context.Context, socketID string, sessionID uuid.UUID) error {
	cs, err := uc.state(socketID)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.status != ConnectionJoined {
		return fmt.Errorf("%w: join first", domain.ErrUnauthenticated)
	}

	if !cs.participant.IsAdmin() {
		return fmt.Errorf("%w: only support staff can join sessions", domain.ErrForbidden)
	}

	if _, ok := cs.sessions[sessionID]; ok {
		return nil
	}

	conn := cs.connection()

	if err = uc.sessions.AttachSocket(ctx, sessionID, conn); err != nil {
		return fmt.Errorf("attach socket: %w", err)
	}

	cs.sessions[sessionID] = struct{}{}

	send(cs.socket, events.TypeJoined, events.JoinedEvent{
		SessionID:     &sessionID,
		ParticipantID: cs.participant.ID,
		DisplayName:   cs.participant.DisplayName,
		Kind:          string(cs.participant.Kind),
		Role:          string(cs.participant.Role),
	})

	uc.calls.Replay(ctx, sessionID, conn)

	return nil
}

func (uc *connectionUsecase) OnDisconnect(ctx context.Context, socketID string) {
	uc.mu.Lock()
	cs, ok := uc.conns[socketID]
	delete(uc.conns, socketID)
	uc.mu.Unlock()

	if !ok {
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.status == ConnectionDisconnected {
		return
	}

	wasJoined := cs.status == ConnectionJoined
	cs.status = ConnectionDisconnected

	// Обрыв посреди звонка равен положенной трубке
	uc.calls.EndForConnection(ctx, socketID)

	// Офлайн рассылается до отсоединения, пока собеседники по сессиям ещё видны
	if wasJoined {
		uc.presence.OnDisconnect(ctx, cs.connection())
	}

	for sessionID := range cs.sessions {
		uc.sessions.DetachSocket(ctx, sessionID, socketID)
	}

	cs.sessions = nil

	if err := cs.socket.Close(); err != nil {
		slog.Debug("close socket", slog.Any(constant.Error, err), slog.String(constant.ConnectionID, socketID))
	}

	slog.Info(
		"connection closed",
		slog.String(constant.ConnectionID, socketID),
		slog.String(constant.UserID, cs.participant.ID),
	)
}

func (uc *connectionUsecase) Authorize(socketID string, sessionID uuid.UUID) (runtime.Connection, error) {
	cs, err := uc.state(socketID)
	if err != nil {
		return runtime.Connection{}, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.status != ConnectionJoined {
		return runtime.Connection{}, fmt.Errorf("%w: join first", domain.ErrUnauthenticated)
	}

	if _, ok := cs.sessions[sessionID]; !ok {
		return runtime.Connection{}, fmt.Errorf("%w: not attached to session", domain.ErrForbidden)
	}

	return cs.connection(), nil
}

func (uc *connectionUsecase) Status(socketID string) ConnectionStatus {
	cs, err := uc.state(socketID)
	if err != nil {
		return ConnectionDisconnected
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.status
}

func (uc *connectionUsecase) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	uc.calls.EndSession(ctx, sessionID, models.EndReasonSessionClosed)

	if err := uc.sessions.CloseSession(ctx, sessionID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return nil
}

func (uc *connectionUsecase) state(socketID string) (*connState, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	cs, ok := uc.conns[socketID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown connection", runtime.ErrSocketClosed)
	}

	return cs, nil
}
