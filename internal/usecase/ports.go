//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../mocks/mock_ports.go -package=mocks
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/domain/models"
)

// ChatStore - хранилище сессий и сообщений.
// Источник истины для сессий во время работы - SessionUsecase, стор пишется следом.
type ChatStore interface {
	UpsertSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	FindActiveSession(ctx context.Context, participantID string) (*models.ChatSession, error)
	ListSessions(ctx context.Context) ([]models.ChatSession, error)

	InsertMessage(ctx context.Context, message models.Message) error
	// LoadMessagesBySession возвращает последние limit сообщений в порядке создания
	LoadMessagesBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error)
	// MarkMessagesRead помечает прочитанными сообщения всех отправителей, кроме exceptSender
	MarkMessagesRead(ctx context.Context, sessionID uuid.UUID, exceptSender models.Sender) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}
