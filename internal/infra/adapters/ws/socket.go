package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

const maxMessageSize = 64 * 1024

// ErrMalformed - кадр не разбирается как событие
var ErrMalformed = errors.New("malformed frame")

type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// Socket оборачивает websocket.Conn. Писатель один - WritePump, Send только ставит в очередь.
type Socket struct {
	id   string
	conn *websocket.Conn
	cfg  Config

	send chan events.Message
	done chan struct{}

	closeOnce sync.Once
}

var _ runtime.Socket = (*Socket)(nil)

func NewSocket(conn *websocket.Conn, cfg Config) *Socket {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Socket{
		id:   uuid.NewString(),
		conn: conn,
		cfg:  cfg,
		send: make(chan events.Message, cfg.SendBuffer),
		done: make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	return s
}

func (s *Socket) ID() string {
	return s.id
}

// Send не блокируется. Переполненная очередь значит медленного клиента: сокет закрывается.
func (s *Socket) Send(msg events.Message) error {
	select {
	case <-s.done:
		return runtime.ErrSocketClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		slog.Warn("websocket send queue overflow", slog.String(constant.ConnectionID, s.id))
		_ = s.Close()

		return runtime.ErrSlowConsumer
	}
}

func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	return nil
}

func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Read читает следующее событие; продлевает дедлайн только pong
func (s *Socket) Read() (events.Message, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return events.Message{}, err
	}

	var msg events.Message
	if err = json.Unmarshal(data, &msg); err != nil {
		return events.Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if msg.Type == "" {
		return events.Message{}, fmt.Errorf("%w: empty type", ErrMalformed)
	}

	return msg, nil
}

// WritePump - единственная горутина, пишущая в соединение. Закрывает соединение при выходе.
func (s *Socket) WritePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)

	defer func() {
		ticker.Stop()
		_ = s.Close()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))

			if err := s.conn.WriteJSON(msg); err != nil {
				slog.Error(
					"write to websocket",
					slog.Any(constant.Error, err),
					slog.String(constant.ConnectionID, s.id),
				)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)

			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Error("ping failed", slog.Any(constant.Error, err), slog.String(constant.ConnectionID, s.id))
				return
			}

		case <-s.done:
			s.drain()

			deadline := time.Now().Add(s.cfg.WriteTimeout)
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline,
			)

			return
		}
	}
}

// drain дописывает то, что уже в очереди: последнее событие перед закрытием обычно ошибка
func (s *Socket) drain() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))

			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
