package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/application/metric"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

// SessionUsecase - реестр сессий: участник -> сессия, сессия -> подключения.
// Единственный владелец ChatSession и сообщений; стор пишется следом.
type SessionUsecase interface {
	GetOrCreateSession(ctx context.Context, p models.Participant) (models.ChatSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (models.ChatSession, error)
	ListSessions(ctx context.Context) ([]models.ChatSession, error)

	// AttachSocket подключает сокет к сессии и отправляет ему историю
	AttachSocket(ctx context.Context, sessionID uuid.UUID, conn runtime.Connection) error
	DetachSocket(ctx context.Context, sessionID uuid.UUID, socketID string)
	LoadHistory(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID) error

	// Update выполняет fn под мьютексом сессии. Все операции над сообщениями сессии идут через него.
	Update(ctx context.Context, sessionID uuid.UUID, fn func(s *models.ChatSession, conns []runtime.Connection) error) error
	Connections(ctx context.Context, sessionID uuid.UUID) ([]runtime.Connection, error)

	// Counterparts - чужие подключения в сессиях, где участвует participantID
	Counterparts(participantID string) []runtime.Connection
	SetOnline(participantID string, online bool)
}

type sessionEntry struct {
	mu      sync.Mutex
	session *models.ChatSession
	conns   map[string]runtime.Connection

	// evicted - запись выгружена из памяти; держатель указателя должен перечитать реестр
	evicted bool
}

func (e *sessionEntry) connections() []runtime.Connection {
	return lo.Values(e.conns)
}

type sessionUsecase struct {
	store        ChatStore
	historyLimit int

	mu            sync.RWMutex
	entries       map[uuid.UUID]*sessionEntry
	byParticipant map[string]uuid.UUID
	online        map[string]struct{}

	sf singleflight.Group
}

func NewSessionUsecase(store ChatStore, historyLimit int) SessionUsecase {
	return &sessionUsecase{
		store:         store,
		historyLimit:  historyLimit,
		entries:       make(map[uuid.UUID]*sessionEntry),
		byParticipant: make(map[string]uuid.UUID),
		online:        make(map[string]struct{}),
	}
}

func (uc *sessionUsecase) GetOrCreateSession(ctx context.Context, p models.Participant) (models.ChatSession, error) {
	// Один полёт на участника: параллельные вкладки получают одну и ту же сессию
	v, err, _ := uc.sf.Do("participant:"+p.ID, func() (any, error) {
		if e, ok := uc.activeEntry(p.ID); ok {
			return e, nil
		}

		s, err := uc.store.FindActiveSession(ctx, p.ID)
		switch {
		case err == nil:
			if err = uc.loadMessages(ctx, s); err != nil {
				return nil, err
			}

		case errors.Is(err, domain.ErrSessionNotFound):
			s = models.NewChatSession(p)

			if err = uc.store.UpsertSession(ctx, s); err != nil {
				return nil, fmt.Errorf("%w: upsert session: %v", domain.ErrPersistenceFailure, err)
			}

			slog.Info(
				"chat session created",
				slog.String(constant.SessionID, s.ID.String()),
				slog.String(constant.UserID, p.ID),
			)

		default:
			return nil, fmt.Errorf("%w: find active session: %v", domain.ErrPersistenceFailure, err)
		}

		return uc.register(s), nil
	})
	if err != nil {
		return models.ChatSession{}, err
	}

	e := v.(*sessionEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.session.Summary(), nil
}

func (uc *sessionUsecase) GetSession(ctx context.Context, sessionID uuid.UUID) (models.ChatSession, error) {
	e, err := uc.lockEntry(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	defer e.mu.Unlock()

	return e.session.Summary(), nil
}

func (uc *sessionUsecase) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	stored, err := uc.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	uc.mu.RLock()
	online := make(map[string]struct{}, len(uc.online))
	for id := range uc.online {
		online[id] = struct{}{}
	}
	live := lo.Values(uc.entries)
	uc.mu.RUnlock()

	byID := lo.SliceToMap(stored, func(s models.ChatSession) (uuid.UUID, models.ChatSession) {
		_, s.IsOnline = online[s.ParticipantID]
		return s.ID, s
	})

	// Память свежее стора
	for _, e := range live {
		e.mu.Lock()
		if !e.evicted {
			byID[e.session.ID] = e.session.Summary()
		}
		e.mu.Unlock()
	}

	out := lo.Values(byID)

	slices.SortFunc(out, func(a, b models.ChatSession) int {
		return cmp.Compare(lastActivity(b).UnixNano(), lastActivity(a).UnixNano())
	})

	return out, nil
}

func (uc *sessionUsecase) AttachSocket(ctx context.Context, sessionID uuid.UUID, conn runtime.Connection) error {
	e, err := uc.lockEntry(ctx, sessionID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if !e.session.IsActive() {
		return fmt.Errorf("attach socket: %w", domain.ErrSessionClosed)
	}

	e.conns[conn.ID()] = conn

	// История уходит под мьютексом сессии, чтобы новое сообщение не обогнало её
	send(conn.Socket, events.TypeChatHistory, events.NewChatHistory(sessionID, e.session.Messages))

	slog.Debug(
		"socket attached",
		slog.String(constant.SessionID, sessionID.String()),
		slog.String(constant.ConnectionID, conn.ID()),
		slog.Int("sockets", len(e.conns)),
	)

	return nil
}

// DetachSocket не закрывает сессию. Сессия без сокетов выгружается из памяти и поднимается из стора по требованию.
func (uc *sessionUsecase) DetachSocket(ctx context.Context, sessionID uuid.UUID, socketID string) {
	uc.mu.RLock()
	e, ok := uc.entries[sessionID]
	uc.mu.RUnlock()

	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.evicted {
		return
	}

	delete(e.conns, socketID)

	if len(e.conns) == 0 {
		uc.evictLocked(e)
	}
}

func (uc *sessionUsecase) LoadHistory(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	e, err := uc.lockEntry(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return e.session.History(), nil
}

// CloseSession - единственный переход active -> closed. Повторное закрытие ничего не делает.
func (uc *sessionUsecase) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	e, err := uc.lockEntry(ctx, sessionID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if !e.session.IsActive() {
		return nil
	}

	closed := e.session.Summary()
	closed.Close()

	if err = uc.store.UpsertSession(ctx, &closed); err != nil {
		return fmt.Errorf("%w: close session: %v", domain.ErrPersistenceFailure, err)
	}

	e.session.Close()

	uc.mu.Lock()
	if uc.byParticipant[e.session.ParticipantID] == sessionID {
		delete(uc.byParticipant, e.session.ParticipantID)
	}
	uc.mu.Unlock()

	broadcast(e.connections(), events.TypeSessionClosed, events.SessionRef{SessionID: sessionID})

	slog.Info("chat session closed", slog.String(constant.SessionID, sessionID.String()))

	if len(e.conns) == 0 {
		uc.evictLocked(e)
	}

	return nil
}

func (uc *sessionUsecase) Update(
	ctx context.Context,
	sessionID uuid.UUID,
	fn func(s *models.ChatSession, conns []runtime.Connection) error,
) error {
	e, err := uc.lockEntry(ctx, sessionID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err = fn(e.session, e.connections()); err != nil {
		return err
	}

	// Живая сессия держит столько же истории, сколько поднимается из стора
	e.session.TrimHistory(uc.historyLimit)

	return nil
}

func (uc *sessionUsecase) Connections(ctx context.Context, sessionID uuid.UUID) ([]runtime.Connection, error) {
	e, err := uc.lockEntry(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if !e.session.IsActive() {
		return nil, fmt.Errorf("connections: %w", domain.ErrSessionClosed)
	}

	return e.connections(), nil
}

func (uc *sessionUsecase) Counterparts(participantID string) []runtime.Connection {
	seen := make(map[string]runtime.Connection)

	for _, e := range uc.snapshot() {
		e.mu.Lock()

		if !e.evicted && uc.involves(e, participantID) {
			for id, conn := range e.conns {
				if conn.Participant.ID != participantID {
					seen[id] = conn
				}
			}
		}

		e.mu.Unlock()
	}

	return lo.Values(seen)
}

func (uc *sessionUsecase) SetOnline(participantID string, online bool) {
	uc.mu.Lock()
	if online {
		uc.online[participantID] = struct{}{}
	} else {
		delete(uc.online, participantID)
	}
	uc.mu.Unlock()

	for _, e := range uc.snapshot() {
		e.mu.Lock()
		if e.session.ParticipantID == participantID {
			e.session.IsOnline = online
		}
		e.mu.Unlock()
	}
}

func (uc *sessionUsecase) involves(e *sessionEntry, participantID string) bool {
	if e.session.ParticipantID == participantID {
		return true
	}

	return lo.SomeBy(e.connections(), func(conn runtime.Connection) bool {
		return conn.Participant.ID == participantID
	})
}

func (uc *sessionUsecase) snapshot() []*sessionEntry {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	return lo.Values(uc.entries)
}

func (uc *sessionUsecase) activeEntry(participantID string) (*sessionEntry, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	id, ok := uc.byParticipant[participantID]
	if !ok {
		return nil, false
	}

	e, ok := uc.entries[id]

	return e, ok
}

// lockEntry возвращает запись сессии под её мьютексом, поднимая сессию из стора при промахе
func (uc *sessionUsecase) lockEntry(ctx context.Context, sessionID uuid.UUID) (*sessionEntry, error) {
	for {
		e, err := uc.entry(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()

		if !e.evicted {
			return e, nil
		}

		e.mu.Unlock()
	}
}

func (uc *sessionUsecase) entry(ctx context.Context, sessionID uuid.UUID) (*sessionEntry, error) {
	uc.mu.RLock()
	e, ok := uc.entries[sessionID]
	uc.mu.RUnlock()

	if ok {
		return e, nil
	}

	v, err, _ := uc.sf.Do("session:"+sessionID.String(), func() (any, error) {
		s, err := uc.store.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, err
			}

			return nil, fmt.Errorf("%w: get session: %v", domain.ErrPersistenceFailure, err)
		}

		if err = uc.loadMessages(ctx, s); err != nil {
			return nil, err
		}

		return uc.register(s), nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*sessionEntry), nil
}

func (uc *sessionUsecase) loadMessages(ctx context.Context, s *models.ChatSession) error {
	messages, err := uc.store.LoadMessagesBySession(ctx, s.ID, uc.historyLimit)
	if err != nil {
		return fmt.Errorf("%w: load messages: %v", domain.ErrPersistenceFailure, err)
	}

	s.Messages = messages

	return nil
}

// register кладёт сессию в реестр; если её уже подняли параллельно, возвращается существующая запись
func (uc *sessionUsecase) register(s *models.ChatSession) *sessionEntry {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if e, ok := uc.entries[s.ID]; ok {
		return e
	}

	_, s.IsOnline = uc.online[s.ParticipantID]

	e := &sessionEntry{
		session: s,
		conns:   make(map[string]runtime.Connection),
	}

	uc.entries[s.ID] = e

	if s.IsActive() {
		uc.byParticipant[s.ParticipantID] = s.ID
	}

	metric.IncrementActiveSessions()

	return e
}

// evictLocked вызывается под e.mu
func (uc *sessionUsecase) evictLocked(e *sessionEntry) {
	e.evicted = true

	uc.mu.Lock()
	defer uc.mu.Unlock()

	delete(uc.entries, e.session.ID)

	if uc.byParticipant[e.session.ParticipantID] == e.session.ID {
		delete(uc.byParticipant, e.session.ParticipantID)
	}

	metric.DecrementActiveSessions()
}

func lastActivity(s models.ChatSession) time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}

	return s.CreatedAt
}
