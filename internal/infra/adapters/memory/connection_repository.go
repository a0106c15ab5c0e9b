package memory

import (
	"sync"

	"github.com/samber/lo"

	"github.com/qrave1/GoldLink/internal/application/metric"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

// ConnectionRepository хранит подключения, прошедшие join
type ConnectionRepository interface {
	// Add возвращает число подключений участника после добавления
	Add(conn runtime.Connection) int
	// Remove возвращает удалённое подключение и сколько подключений участника осталось
	Remove(connectionID string) (runtime.Connection, int, bool)
	Get(connectionID string) (runtime.Connection, bool)

	// Watchers - подключения поддержки, наблюдающие присутствие
	Watchers() []runtime.Connection
	Participants() []runtime.Connection
}

type connectionRepository struct {
	// conns хранит map[connection_id]Connection
	conns map[string]runtime.Connection
	// perParticipant хранит map[participant_id]количество подключений
	perParticipant map[string]int

	mu sync.RWMutex
}

func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{
		conns:          make(map[string]runtime.Connection, 10),
		perParticipant: make(map[string]int, 10),
	}
}

func (r *connectionRepository) Add(conn runtime.Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return r.perParticipant[conn.Participant.ID]
	}

	r.conns[conn.ID()] = conn
	r.perParticipant[conn.Participant.ID]++

	// Увеличиваем счетчик активных WS соединений
	metric.IncrementWSActiveConnections()

	return r.perParticipant[conn.Participant.ID]
}

func (r *connectionRepository) Remove(connectionID string) (runtime.Connection, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return runtime.Connection{}, 0, false
	}

	delete(r.conns, connectionID)

	pid := conn.Participant.ID
	r.perParticipant[pid]--

	left := r.perParticipant[pid]
	if left <= 0 {
		delete(r.perParticipant, pid)
		left = 0
	}

	// Уменьшаем счетчик активных WS соединений
	metric.DecrementWSActiveConnections()

	return conn, left, true
}

func (r *connectionRepository) Get(connectionID string) (runtime.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connectionID]

	return conn, ok
}

func (r *connectionRepository) Watchers() []runtime.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(lo.Values(r.conns), func(c runtime.Connection, _ int) bool {
		return c.Participant.IsAdmin()
	})
}

// Participants - по одному подключению на участника
func (r *connectionRepository) Participants() []runtime.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.UniqBy(lo.Values(r.conns), func(c runtime.Connection) string {
		return c.Participant.ID
	})
}
