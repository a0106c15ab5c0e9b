package models

import (
	"strings"

	"github.com/google/uuid"
)

type ParticipantKind string

const (
	KindAuthenticated ParticipantKind = "authenticated"
	KindGuest         ParticipantKind = "guest"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

const guestIDPrefix = "guest-"

// Participant - стабильная личность подключения: пользователь или гость вкладки браузера
type Participant struct {
	ID          string          `json:"id"`
	Kind        ParticipantKind `json:"kind"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email,omitempty"`
	Role        Role            `json:"role"`
}

func NewGuest(id, name, email string) Participant {
	if name == "" {
		name = "Guest"
	}

	return Participant{
		ID:          id,
		Kind:        KindGuest,
		DisplayName: name,
		Email:       email,
		Role:        RoleCustomer,
	}
}

func (p Participant) IsGuest() bool {
	return p.Kind == KindGuest
}

func (p Participant) IsAdmin() bool {
	return p.Kind == KindAuthenticated && p.Role == RoleAdmin
}

// Sender возвращает отправителя, которым участник подписывает сообщения
func (p Participant) Sender() Sender {
	if p.IsAdmin() {
		return SenderAdmin
	}

	return SenderUser
}

func NewGuestID() string {
	return guestIDPrefix + uuid.NewString()
}

// IsGuestID проверяет, что id выдан как гостевой: префикс + uuid
func IsGuestID(id string) bool {
	rest, ok := strings.CutPrefix(id, guestIDPrefix)
	if !ok {
		return false
	}

	_, err := uuid.Parse(rest)

	return err == nil && len(rest) == 36
}
