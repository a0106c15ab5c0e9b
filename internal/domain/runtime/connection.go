package runtime

import (
	"errors"

	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

var (
	ErrSocketClosed = errors.New("socket closed")
	ErrSlowConsumer = errors.New("slow consumer")
)

// Socket - одно физическое подключение клиента.
// Send не блокируется: событие ставится в очередь, запись идёт в отдельной горутине.
type Socket interface {
	ID() string
	Send(msg events.Message) error
	Close() error
}

// Connection - подключение вместе с личностью, от имени которой оно действует
type Connection struct {
	Socket      Socket
	Participant models.Participant
}

func (c Connection) ID() string {
	return c.Socket.ID()
}
