package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated - нет валидной личности; подключение всё равно допускается как гость
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")

	ErrCallAlreadyActive = errors.New("call already active")
	ErrInvalidCallState  = errors.New("invalid call state")
	ErrCallNotFound      = fmt.Errorf("%w: call not found", ErrInvalidCallState)

	// ErrTransportFailure - медиа транспорт сообщил об отказе; звонок завершается, сессия живёт
	ErrTransportFailure = errors.New("transport failure")

	// ErrPersistenceFailure - запись сообщения не удалась; сообщение не подтверждается
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Code возвращает стабильный код ошибки для клиента
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserAlreadyExists):
		return "user_already_exists"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrCallAlreadyActive):
		return "call_already_active"
	case errors.Is(err, ErrCallNotFound):
		return "call_not_found"
	case errors.Is(err, ErrInvalidCallState):
		return "invalid_call_state"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	default:
		return "internal"
	}
}
