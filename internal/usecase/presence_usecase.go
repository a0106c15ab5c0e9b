package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/qrave1/GoldLink/internal/application/constant"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
	"github.com/qrave1/GoldLink/internal/infra/adapters/memory"
)

// PresenceUsecase - онлайн/офлайн по событиям подключения.
// Присутствие не авторитетно: после обрыва сети участник виден онлайн до истечения pong таймаута.
type PresenceUsecase interface {
	OnConnect(ctx context.Context, conn runtime.Connection)
	OnDisconnect(ctx context.Context, conn runtime.Connection)

	IsOnline(participantID string) bool
	OnlineParticipants(ctx context.Context) []models.Participant
}

type presenceUsecase struct {
	// mu сериализует переходы 0 <-> 1, чтобы online и offline не пришли в обратном порядке
	mu sync.Mutex

	connRepo memory.ConnectionRepository
	sessions SessionUsecase
}

func NewPresenceUsecase(connRepo memory.ConnectionRepository, sessions SessionUsecase) PresenceUsecase {
	return &presenceUsecase{
		connRepo: connRepo,
		sessions: sessions,
	}
}

func (uc *presenceUsecase) OnConnect(ctx context.Context, conn runtime.Connection) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.connRepo.Add(conn) != 1 {
		return
	}

	uc.sessions.SetOnline(conn.Participant.ID, true)
	uc.notify(conn.Participant.ID, events.TypeUserOnline)

	slog.Debug("participant online", slog.String(constant.UserID, conn.Participant.ID))
}

func (uc *presenceUsecase) OnDisconnect(ctx context.Context, conn runtime.Connection) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, left, ok := uc.connRepo.Remove(conn.ID()); !ok || left > 0 {
		return
	}

	uc.sessions.SetOnline(conn.Participant.ID, false)
	uc.notify(conn.Participant.ID, events.TypeUserOffline)

	slog.Debug("participant offline", slog.String(constant.UserID, conn.Participant.ID))
}

func (uc *presenceUsecase) IsOnline(participantID string) bool {
	return lo.SomeBy(uc.connRepo.Participants(), func(c runtime.Connection) bool {
		return c.Participant.ID == participantID
	})
}

func (uc *presenceUsecase) OnlineParticipants(ctx context.Context) []models.Participant {
	return lo.Map(uc.connRepo.Participants(), func(c runtime.Connection, _ int) models.Participant {
		return c.Participant
	})
}

// notify - собеседникам по сессиям и наблюдающей поддержке, без собственных сокетов участника
func (uc *presenceUsecase) notify(participantID, eventType string) {
	targets := append(uc.sessions.Counterparts(participantID), uc.connRepo.Watchers()...)

	targets = lo.UniqBy(targets, func(c runtime.Connection) string {
		return c.ID()
	})

	targets = lo.Filter(targets, func(c runtime.Connection, _ int) bool {
		return c.Participant.ID != participantID
	})

	broadcast(targets, eventType, events.PresenceEvent{UserID: participantID})
}
