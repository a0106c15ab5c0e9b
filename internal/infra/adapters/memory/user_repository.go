package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

type UserRepository struct {
	users      map[uuid.UUID]models.User
	byUsername map[string]uuid.UUID

	mu sync.RWMutex
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[uuid.UUID]models.User),
		byUsername: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return domain.ErrUserAlreadyExists
	}

	r.users[user.ID] = *user
	r.byUsername[user.Username] = user.ID

	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	return &user, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	user := r.users[id]

	return &user, nil
}
