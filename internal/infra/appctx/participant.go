package appctx

import (
	"context"

	"github.com/qrave1/GoldLink/internal/domain/models"
)

type ctxKey string

const participantKey ctxKey = "participant"

// WithParticipant добавляет участника в контекст
func WithParticipant(ctx context.Context, p models.Participant) context.Context {
	return context.WithValue(ctx, participantKey, p)
}

// Participant извлекает участника из контекста
func Participant(ctx context.Context) (models.Participant, bool) {
	p, ok := ctx.Value(participantKey).(models.Participant)
	return p, ok
}
