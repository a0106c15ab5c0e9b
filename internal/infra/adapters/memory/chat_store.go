package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

// ChatStore - хранилище без персистентности, для разработки и тестов
type ChatStore struct {
	sessions map[uuid.UUID]models.ChatSession
	messages map[uuid.UUID][]models.Message

	mu sync.RWMutex
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		sessions: make(map[uuid.UUID]models.ChatSession),
		messages: make(map[uuid.UUID][]models.Message),
	}
}

func (s *ChatStore) UpsertSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session.Summary()

	return nil
}

func (s *ChatStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return &session, nil
}

func (s *ChatStore) FindActiveSession(ctx context.Context, participantID string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := lo.Find(lo.Values(s.sessions), func(cs models.ChatSession) bool {
		return cs.ParticipantID == participantID && cs.IsActive()
	})
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return &session, nil
}

func (s *ChatStore) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Values(s.sessions), nil
}

func (s *ChatStore) InsertMessage(ctx context.Context, message models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)

	return nil
}

func (s *ChatStore) LoadMessagesBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]models.Message, len(all))
	copy(out, all)

	return out, nil
}

func (s *ChatStore) MarkMessagesRead(ctx context.Context, sessionID uuid.UUID, exceptSender models.Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages[sessionID] {
		if m.Sender != exceptSender {
			s.messages[sessionID][i].IsRead = true
		}
	}

	return nil
}
