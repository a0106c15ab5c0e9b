package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/GoldLink/internal/application/config"
	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
	"github.com/qrave1/GoldLink/internal/infra/adapters/ws"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/middleware"
	"github.com/qrave1/GoldLink/internal/usecase"
)

type WebSocketHandler struct {
	upgrader  *websocket.Upgrader
	socketCfg ws.Config

	connectionUsecase usecase.ConnectionUsecase
	relayUsecase      usecase.RelayUsecase
	callUsecase       usecase.CallUsecase
}

func NewWebSocketHandler(
	cfg *config.Config,
	connectionUsecase usecase.ConnectionUsecase,
	relayUsecase usecase.RelayUsecase,
	callUsecase usecase.CallUsecase,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		socketCfg: ws.Config{
			PingInterval: cfg.Websocket.PingInterval,
			PongTimeout:  cfg.Websocket.PongTimeout,
			SendBuffer:   cfg.Websocket.SendBuffer,
		},
		connectionUsecase: connectionUsecase,
		relayUsecase:      relayUsecase,
		callUsecase:       callUsecase,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	// Токен необязателен: без него подключение входит гостем
	token := middleware.TokenFromRequest(c)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}

	socket := ws.NewSocket(conn, h.socketCfg)
	go socket.WritePump()

	h.connectionUsecase.Open(socket)

	// Уборка не должна зависеть от отменённого контекста запроса
	defer h.connectionUsecase.OnDisconnect(context.WithoutCancel(c.Request().Context()), socket.ID())

	ctx := c.Request().Context()

	for {
		msg, err := socket.Read()
		if err != nil {
			if errors.Is(err, ws.ErrMalformed) {
				sendError(socket, "", fmt.Errorf("%w: %v", domain.ErrBadRequest, err), false)
			} else {
				handleWebsocketError(err, socket.ID())
			}

			return nil
		}

		if err = h.handleMessage(ctx, socket, msg, token); err != nil {
			slog.Debug(
				"handle message",
				slog.Any(constant.Error, err),
				slog.String(constant.EventType, msg.Type),
				slog.String(constant.ConnectionID, socket.ID()),
			)

			sendError(socket, msg.Type, err, true)
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	socket *ws.Socket,
	msg events.Message,
	token string,
) error {
	switch msg.Type {
	case events.TypeJoin:
		event, err := decode[events.JoinEvent](msg.Data)
		if err != nil {
			return err
		}

		_, err = h.connectionUsecase.OnJoin(ctx, socket.ID(), usecase.Credentials{
			Token:      token,
			GuestID:    event.Identity,
			GuestName:  event.GuestName,
			GuestEmail: event.GuestEmail,
		})

		return err

	case events.TypeJoinSession:
		event, err := decode[events.SessionRef](msg.Data)
		if err != nil {
			return err
		}

		return h.connectionUsecase.OnJoinSession(ctx, socket.ID(), event.SessionID)

	case events.TypeChatMessage:
		return h.handleChatMessage(ctx, socket, msg.Data)

	case events.TypeChatTyping:
		event, err := decode[events.TypingEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, err := h.connectionUsecase.Authorize(socket.ID(), event.SessionID)
		if err != nil {
			return err
		}

		return h.relayUsecase.SetTyping(ctx, event.SessionID, conn.Participant, event.IsTyping)

	case events.TypeChatRead:
		event, err := decode[events.SessionRef](msg.Data)
		if err != nil {
			return err
		}

		conn, err := h.connectionUsecase.Authorize(socket.ID(), event.SessionID)
		if err != nil {
			return err
		}

		return h.relayUsecase.MarkRead(ctx, event.SessionID, conn.Participant)

	case events.TypeCallInvite:
		event, err := decode[events.CallInviteEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, err := h.connectionUsecase.Authorize(socket.ID(), event.SessionID)
		if err != nil {
			return err
		}

		_, err = h.callUsecase.Invite(ctx, event.SessionID, conn, models.CallType(event.CallType), event.Offer)

		return err

	case events.TypeCallAccept:
		event, err := decode[events.CallAcceptEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, uuid.Nil)
		if err != nil {
			return err
		}

		return h.callUsecase.Accept(ctx, callID, conn, event.Answer)

	case events.TypeCallReject:
		event, err := decode[events.SessionRef](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, uuid.Nil)
		if err != nil {
			return err
		}

		return h.callUsecase.Reject(ctx, callID, conn)

	case events.TypeCallEnd:
		event, err := decode[events.SessionRef](msg.Data)
		if err != nil {
			return err
		}

		conn, err := h.connectionUsecase.Authorize(socket.ID(), event.SessionID)
		if err != nil {
			return err
		}

		// Повторный сброс идемпотентен: звонка уже нет, ответа не будет
		callID, ok := h.callUsecase.ActiveCall(event.SessionID)
		if !ok {
			return nil
		}

		return h.callUsecase.End(ctx, callID, conn.Participant.ID, models.EndReasonHangup)

	case events.TypeCallMedia:
		event, err := decode[events.CallMediaEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, uuid.Nil)
		if err != nil {
			return err
		}

		return h.callUsecase.SetMedia(ctx, callID, conn, event.IsMuted, event.IsVideoOff)

	case events.TypeCallTransport:
		event, err := decode[events.CallTransportEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, uuid.Nil)
		if err != nil {
			return err
		}

		return h.callUsecase.ReportTransportState(ctx, callID, conn, models.TransportState(event.State))

	case events.TypeWebrtcOffer:
		event, err := decode[events.SDPEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, event.CallID)
		if err != nil {
			return err
		}

		return h.callUsecase.Offer(ctx, callID, conn, event.Payload)

	case events.TypeWebrtcAnswer:
		event, err := decode[events.SDPEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, event.CallID)
		if err != nil {
			return err
		}

		return h.callUsecase.Answer(ctx, callID, conn, event.Payload)

	case events.TypeWebrtcIceCandidate:
		event, err := decode[events.IceCandidateEvent](msg.Data)
		if err != nil {
			return err
		}

		conn, callID, err := h.callContext(socket, event.SessionID, event.CallID)
		if err != nil {
			return err
		}

		return h.callUsecase.RelayIceCandidate(ctx, callID, conn, event.Payload)

	case events.TypeSessionClose:
		event, err := decode[events.SessionRef](msg.Data)
		if err != nil {
			return err
		}

		conn, err := h.connectionUsecase.Authorize(socket.ID(), event.SessionID)
		if err != nil {
			return err
		}

		if !conn.Participant.IsAdmin() {
			return fmt.Errorf("%w: only support staff can close sessions", domain.ErrForbidden)
		}

		return h.connectionUsecase.CloseSession(ctx, event.SessionID)

	case events.TypePing:
		return reply(socket, events.TypePong, nil)

	default:
		return fmt.Errorf("%w: unknown message type %q", domain.ErrBadRequest, msg.Type)
	}
}

// handleChatMessage отвечает отправителю ack или chat:failed. Отправитель берётся из личности подключения.
func (h *WebSocketHandler) handleChatMessage(ctx context.Context, socket *ws.Socket, data []byte) error {
	event, err := decode[events.ChatMessageEvent](data)
	if err != nil {
		return err
	}

	conn, err := h.connectionUsecase.Authorize(socket.ID(), event.SessionID)
	if err != nil {
		return err
	}

	msg, err := h.relayUsecase.Post(ctx, event.SessionID, conn.Participant.Sender(), event.Content)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailure) || errors.Is(err, domain.ErrSessionClosed) {
			slog.Warn(
				"chat message not accepted",
				slog.Any(constant.Error, err),
				slog.String(constant.SessionID, event.SessionID.String()),
			)

			return reply(socket, events.TypeChatFailed, events.ChatFailedEvent{
				ClientMessageID: event.ClientMessageID,
				Code:            domain.Code(err),
			})
		}

		return err
	}

	return reply(socket, events.TypeChatAck, events.ChatAckEvent{
		ClientMessageID: event.ClientMessageID,
		MessageID:       msg.ID,
		Seq:             msg.Seq,
	})
}

// callContext проверяет доступ к сессии и находит её активный звонок.
// Звонок всегда берётся по сессии: чужой callId не даёт доступа к звонку другой сессии.
func (h *WebSocketHandler) callContext(
	socket *ws.Socket,
	sessionID uuid.UUID,
	requested uuid.UUID,
) (runtime.Connection, uuid.UUID, error) {
	conn, err := h.connectionUsecase.Authorize(socket.ID(), sessionID)
	if err != nil {
		return runtime.Connection{}, uuid.Nil, err
	}

	callID, ok := h.callUsecase.ActiveCall(sessionID)
	if !ok || (requested != uuid.Nil && requested != callID) {
		return runtime.Connection{}, uuid.Nil, domain.ErrCallNotFound
	}

	return conn, callID, nil
}

func reply(socket runtime.Socket, eventType string, payload any) error {
	msg, err := events.New(eventType, payload)
	if err != nil {
		return err
	}

	if err = socket.Send(msg); err != nil && !errors.Is(err, runtime.ErrSocketClosed) {
		return err
	}

	return nil
}

func sendError(socket runtime.Socket, op string, err error, recoverable bool) {
	sendErr := reply(socket, events.TypeError, events.ErrorEvent{
		Op:          op,
		Code:        domain.Code(err),
		Message:     err.Error(),
		Recoverable: recoverable,
	})
	if sendErr != nil {
		slog.Debug("send error event", slog.Any(constant.Error, sendErr), slog.String(constant.ConnectionID, socket.ID()))
	}
}

func handleWebsocketError(err error, connectionID string) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		slog.Debug("websocket closed", slog.String(constant.ConnectionID, connectionID))
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		slog.Info(
			"websocket closed with code",
			slog.Int("code", closeErr.Code),
			slog.String(constant.ConnectionID, connectionID),
		)
		return
	}

	slog.Warn("webSocket read error", slog.Any(constant.Error, err), slog.String(constant.ConnectionID, connectionID))
}
