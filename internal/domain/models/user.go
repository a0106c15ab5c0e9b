package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Password    string    `json:"password,omitempty" db:"password"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func NewUser() *User {
	return &User{
		ID:        uuid.New(),
		Role:      RoleCustomer,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// Participant представляет аккаунт как аутентифицированного участника чата
func (u *User) Participant() Participant {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}

	return Participant{
		ID:          u.ID.String(),
		Kind:        KindAuthenticated,
		DisplayName: name,
		Role:        u.Role,
	}
}
