package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/application/metric"
	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

// RelayUsecase принимает сообщения, сохраняет и раздаёт их всем сокетам сессии
type RelayUsecase interface {
	// Post принимает сообщение. Порядок раздачи равен порядку приёма: всё идёт под мьютексом сессии.
	Post(ctx context.Context, sessionID uuid.UUID, sender models.Sender, content string) (models.Message, error)
	MarkRead(ctx context.Context, sessionID uuid.UUID, reader models.Participant) error
	// SetTyping не сохраняется и не уходит сокетам самого участника
	SetTyping(ctx context.Context, sessionID uuid.UUID, p models.Participant, isTyping bool) error
}

type relayUsecase struct {
	store    ChatStore
	sessions SessionUsecase
}

func NewRelayUsecase(store ChatStore, sessions SessionUsecase) RelayUsecase {
	return &relayUsecase{
		store:    store,
		sessions: sessions,
	}
}

func (uc *relayUsecase) Post(
	ctx context.Context,
	sessionID uuid.UUID,
	sender models.Sender,
	content string,
) (models.Message, error) {
	if !sender.Valid() {
		return models.Message{}, fmt.Errorf("%w: unknown sender %q", domain.ErrBadRequest, sender)
	}

	if content == "" {
		return models.Message{}, fmt.Errorf("%w: empty content", domain.ErrBadRequest)
	}

	var accepted models.Message

	err := uc.sessions.Update(ctx, sessionID, func(s *models.ChatSession, conns []runtime.Connection) error {
		if !s.IsActive() {
			return fmt.Errorf("post: %w", domain.ErrSessionClosed)
		}

		msg := models.NewMessage(s.ID, s.NextSeq(), sender, content)

		if err := uc.store.InsertMessage(ctx, msg); err != nil {
			return fmt.Errorf("%w: insert message: %v", domain.ErrPersistenceFailure, err)
		}

		s.Append(msg)
		uc.persistSession(ctx, s)

		broadcast(conns, events.TypeChatMessage, events.NewChatMessage(msg))

		accepted = msg

		return nil
	})
	if err != nil {
		metric.RecordChatMessageFailure(domain.Code(err))

		return models.Message{}, err
	}

	metric.RecordChatMessage(string(sender))

	return accepted, nil
}

func (uc *relayUsecase) MarkRead(ctx context.Context, sessionID uuid.UUID, reader models.Participant) error {
	return uc.sessions.Update(ctx, sessionID, func(s *models.ChatSession, conns []runtime.Connection) error {
		by := reader.Sender()

		if err := uc.store.MarkMessagesRead(ctx, s.ID, by); err != nil {
			return fmt.Errorf("%w: mark messages read: %v", domain.ErrPersistenceFailure, err)
		}

		changed := s.MarkRead(by)
		if changed > 0 {
			uc.persistSession(ctx, s)
		}

		broadcast(conns, events.TypeChatRead, events.ReadEvent{
			SessionID: s.ID,
			ReaderID:  reader.ID,
			Reader:    by,
			Count:     changed,
		})

		return nil
	})
}

func (uc *relayUsecase) SetTyping(ctx context.Context, sessionID uuid.UUID, p models.Participant, isTyping bool) error {
	conns, err := uc.sessions.Connections(ctx, sessionID)
	if err != nil {
		return err
	}

	others := make([]runtime.Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.Participant.ID != p.ID {
			others = append(others, conn)
		}
	}

	broadcast(others, events.TypeChatTyping, events.TypingEvent{
		SessionID:     sessionID,
		IsTyping:      isTyping,
		ParticipantID: p.ID,
	})

	return nil
}

// persistSession обновляет метаданные сессии в сторе. Сообщение уже сохранено, поэтому сбой только логируется.
func (uc *relayUsecase) persistSession(ctx context.Context, s *models.ChatSession) {
	summary := s.Summary()

	if err := uc.store.UpsertSession(ctx, &summary); err != nil {
		slog.Error(
			"upsert session metadata",
			slog.Any(constant.Error, err),
			slog.String(constant.SessionID, s.ID.String()),
		)
	}
}
