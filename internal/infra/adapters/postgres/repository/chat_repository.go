package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

const sessionColumns = `id, participant_id, participant_name, participant_email, participant_kind, status,
	last_message_at, unread_count, created_at, updated_at`

type chatRepo struct {
	db *sqlx.DB
}

// NewChatRepo - ChatStore поверх postgres
func NewChatRepo(db *sqlx.DB) *chatRepo {
	return &chatRepo{db: db}
}

func (r *chatRepo) UpsertSession(ctx context.Context, session *models.ChatSession) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO chat_sessions (`+sessionColumns+`)
		VALUES (:id, :participant_id, :participant_name, :participant_email, :participant_kind, :status,
			:last_message_at, :unread_count, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			participant_name = EXCLUDED.participant_name,
			participant_email = EXCLUDED.participant_email,
			last_message_at = EXCLUDED.last_message_at,
			unread_count = EXCLUDED.unread_count,
			updated_at = EXCLUDED.updated_at`,
		session,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

func (r *chatRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession

	err := r.db.GetContext(ctx, &session, "SELECT "+sessionColumns+" FROM chat_sessions WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}

		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (r *chatRepo) FindActiveSession(ctx context.Context, participantID string) (*models.ChatSession, error) {
	var session models.ChatSession

	err := r.db.GetContext(
		ctx,
		&session,
		"SELECT "+sessionColumns+" FROM chat_sessions WHERE participant_id = $1 AND status = $2",
		participantID,
		models.SessionActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}

		return nil, fmt.Errorf("find active session: %w", err)
	}

	return &session, nil
}

func (r *chatRepo) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	var sessions []models.ChatSession

	err := r.db.SelectContext(
		ctx,
		&sessions,
		"SELECT "+sessionColumns+" FROM chat_sessions ORDER BY COALESCE(last_message_at, created_at) DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

func (r *chatRepo) InsertMessage(ctx context.Context, message models.Message) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO chat_messages (id, session_id, seq, sender, content, is_read, created_at)
		VALUES (:id, :session_id, :seq, :sender, :content, :is_read, :created_at)`,
		message,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

func (r *chatRepo) LoadMessagesBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	messages := make([]models.Message, 0)

	err := r.db.SelectContext(
		ctx,
		&messages,
		`SELECT id, session_id, seq, sender, content, is_read, created_at FROM (
			SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		) last ORDER BY seq`,
		sessionID,
		// NULL в LIMIT значит без ограничения
		sql.NullInt64{Int64: int64(limit), Valid: limit > 0},
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	return messages, nil
}

func (r *chatRepo) MarkMessagesRead(ctx context.Context, sessionID uuid.UUID, exceptSender models.Sender) error {
	_, err := r.db.ExecContext(
		ctx,
		"UPDATE chat_messages SET is_read = TRUE WHERE session_id = $1 AND sender <> $2 AND NOT is_read",
		sessionID,
		exceptSender,
	)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}

	return nil
}
