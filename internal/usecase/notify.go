package usecase

import (
	"log/slog"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

// send ставит событие в очередь одного сокета. Ошибка доставки не ломает операцию:
// переполненный сокет закрывается сам и уходит по обычному пути отключения.
func send(socket runtime.Socket, eventType string, payload any) {
	msg, err := events.New(eventType, payload)
	if err != nil {
		slog.Error("encode event", slog.Any(constant.Error, err), slog.String(constant.EventType, eventType))
		return
	}

	deliver(socket, msg)
}

// broadcast кодирует событие один раз и раздаёт всем подключениям
func broadcast(conns []runtime.Connection, eventType string, payload any) {
	if len(conns) == 0 {
		return
	}

	msg, err := events.New(eventType, payload)
	if err != nil {
		slog.Error("encode event", slog.Any(constant.Error, err), slog.String(constant.EventType, eventType))
		return
	}

	for _, conn := range conns {
		deliver(conn.Socket, msg)
	}
}

func deliver(socket runtime.Socket, msg events.Message) {
	if err := socket.Send(msg); err != nil {
		slog.Warn(
			"deliver event",
			slog.Any(constant.Error, err),
			slog.String(constant.ConnectionID, socket.ID()),
			slog.String(constant.EventType, msg.Type),
		)
	}
}
