package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/infra/appctx"
	"github.com/qrave1/GoldLink/internal/infra/ports/http/dto"
	"github.com/qrave1/GoldLink/internal/usecase"
)

type SessionHandler struct {
	sessionUsecase    usecase.SessionUsecase
	callUsecase       usecase.CallUsecase
	presenceUsecase   usecase.PresenceUsecase
	connectionUsecase usecase.ConnectionUsecase
}

func NewSessionHandler(
	sessionUsecase usecase.SessionUsecase,
	callUsecase usecase.CallUsecase,
	presenceUsecase usecase.PresenceUsecase,
	connectionUsecase usecase.ConnectionUsecase,
) *SessionHandler {
	return &SessionHandler{
		sessionUsecase:    sessionUsecase,
		callUsecase:       callUsecase,
		presenceUsecase:   presenceUsecase,
		connectionUsecase: connectionUsecase,
	}
}

// ListSessions - панель поддержки, новые сверху
func (h *SessionHandler) ListSessions(c echo.Context) error {
	sessions, err := h.sessionUsecase.ListSessions(c.Request().Context())
	if err != nil {
		slog.Error("list sessions", slog.Any(constant.Error, err))
		return errorJSON(c, err)
	}

	resp := dto.ListSessionsResponse{
		Sessions: lo.Map(sessions, func(s models.ChatSession, _ int) dto.SessionResponse {
			_, hasCall := h.callUsecase.ActiveCall(s.ID)
			return dto.NewSessionResponseFromModel(s, hasCall)
		}),
	}

	return c.JSON(http.StatusOK, resp)
}

// ListMessages доступен поддержке и владельцу сессии
func (h *SessionHandler) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID, err := sessionIDParam(c)
	if err != nil {
		return errorJSON(c, err)
	}

	p, ok := appctx.Participant(ctx)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user in context"})
	}

	session, err := h.sessionUsecase.GetSession(ctx, sessionID)
	if err != nil {
		return errorJSON(c, err)
	}

	if !p.IsAdmin() && session.ParticipantID != p.ID {
		return errorJSON(c, domain.ErrForbidden)
	}

	messages, err := h.sessionUsecase.LoadHistory(ctx, sessionID)
	if err != nil {
		slog.Error(
			"load history",
			slog.Any(constant.Error, err),
			slog.String(constant.SessionID, sessionID.String()),
		)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewListMessagesResponse(sessionID, messages))
}

func (h *SessionHandler) CloseSession(c echo.Context) error {
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return errorJSON(c, err)
	}

	if err = h.connectionUsecase.CloseSession(c.Request().Context(), sessionID); err != nil {
		slog.Error(
			"close session",
			slog.Any(constant.Error, err),
			slog.String(constant.SessionID, sessionID.String()),
		)
		return errorJSON(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) OnlineParticipants(c echo.Context) error {
	online := h.presenceUsecase.OnlineParticipants(c.Request().Context())

	return c.JSON(http.StatusOK, dto.OnlineParticipantsResponse{
		Participants: lo.Map(online, func(p models.Participant, _ int) dto.OnlineParticipant {
			return dto.OnlineParticipant{
				ID:          p.ID,
				DisplayName: p.DisplayName,
				Kind:        string(p.Kind),
				Role:        string(p.Role),
			}
		}),
	})
}

func sessionIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid session id", domain.ErrBadRequest)
	}

	return id, nil
}
