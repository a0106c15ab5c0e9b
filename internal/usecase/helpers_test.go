package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
	"github.com/qrave1/GoldLink/internal/infra/adapters/memory"
)

var testSecret = []byte("test-secret")

// fakeSocket запоминает всё, что ему отправили
type fakeSocket struct {
	id string

	mu     sync.Mutex
	msgs   []events.Message
	closed bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{id: uuid.NewString()}
}

func (s *fakeSocket) ID() string { return s.id }

func (s *fakeSocket) Send(msg events.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return runtime.ErrSocketClosed
	}

	s.msgs = append(s.msgs, msg)

	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *fakeSocket) ofType(eventType string) []events.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []events.Message
	for _, m := range s.msgs {
		if m.Type == eventType {
			out = append(out, m)
		}
	}

	return out
}

func (s *fakeSocket) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = nil
}

func decode[T any](t *testing.T, msg events.Message) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))

	return v
}

func decodeAll[T any](t *testing.T, msgs []events.Message) []T {
	t.Helper()

	out := make([]T, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, decode[T](t, m))
	}

	return out
}

func connOf(socket runtime.Socket, p models.Participant) runtime.Connection {
	return runtime.Connection{Socket: socket, Participant: p}
}

func guestParticipant(name string) models.Participant {
	return models.NewGuest(models.NewGuestID(), name, "")
}

func adminParticipant(name string) models.Participant {
	return models.Participant{
		ID:          uuid.NewString(),
		Kind:        models.KindAuthenticated,
		DisplayName: name,
		Role:        models.RoleAdmin,
	}
}

type testEnv struct {
	store    *memory.ChatStore
	identity IdentityUsecase
	users    UserUsecase
	sessions SessionUsecase
	relay    RelayUsecase
	calls    CallUsecase
	presence PresenceUsecase
	conns    ConnectionUsecase
}

func newEnv(t *testing.T, ringTimeout time.Duration) *testEnv {
	t.Helper()

	store := memory.NewChatStore()
	identity := NewIdentityUsecase(testSecret)
	sessions := NewSessionUsecase(store, 200)
	calls := NewCallUsecase(sessions, ringTimeout)
	presence := NewPresenceUsecase(memory.NewConnectionRepository(), sessions)

	return &testEnv{
		store:    store,
		identity: identity,
		users:    NewUserUsecase(testSecret, memory.NewUserRepository()),
		sessions: sessions,
		relay:    NewRelayUsecase(store, sessions),
		calls:    calls,
		presence: presence,
		conns:    NewConnectionUsecase(identity, sessions, calls, presence),
	}
}

// joinGuest открывает сокет и входит гостем; возвращает сокет, подключение и сессию
func (e *testEnv) joinGuest(t *testing.T, creds Credentials) (*fakeSocket, runtime.Connection, uuid.UUID) {
	t.Helper()

	socket := newFakeSocket()
	e.conns.Open(socket)

	conn, err := e.conns.OnJoin(context.Background(), socket.ID(), creds)
	require.NoError(t, err)

	joined := socket.ofType(events.TypeJoined)
	require.Len(t, joined, 1)

	ev := decode[events.JoinedEvent](t, joined[0])
	require.NotNil(t, ev.SessionID)

	return socket, conn, *ev.SessionID
}

// joinAdmin входит сотрудником поддержки и подключается к сессии
func (e *testEnv) joinAdmin(t *testing.T, sessionID uuid.UUID) (*fakeSocket, runtime.Connection) {
	t.Helper()

	ctx := context.Background()

	user, err := e.users.CreateUser(ctx, "agent-"+uuid.NewString()[:8], "secret", "Agent", models.RoleAdmin)
	require.NoError(t, err)

	token, err := e.users.GenerateJWT(user)
	require.NoError(t, err)

	socket := newFakeSocket()
	e.conns.Open(socket)

	conn, err := e.conns.OnJoin(ctx, socket.ID(), Credentials{Token: token})
	require.NoError(t, err)
	require.True(t, conn.Participant.IsAdmin())

	require.NoError(t, e.conns.OnJoinSession(ctx, socket.ID(), sessionID))

	return socket, conn
}
