package dto

import "github.com/google/uuid"

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"omitempty,max=80"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse - токен отдаётся и телом, чтобы клиент мог передать его в ws через ?token=
type AuthResponse struct {
	User  GetMeResponse `json:"user"`
	Token string        `json:"token"`
}

type GetMeResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}
