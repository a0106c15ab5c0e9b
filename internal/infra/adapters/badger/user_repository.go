package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

func userKey(id uuid.UUID) []byte {
	return []byte("user:" + id.String())
}

func usernameKey(username string) []byte {
	return []byte("username:" + username)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(usernameKey(user.Username))
		if err == nil {
			return domain.ErrUserAlreadyExists
		}

		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(userKey(user.ID), data); err != nil {
			return err
		}

		return txn.Set(usernameKey(user.Username), []byte(user.ID.String()))
	})
	// Параллельная регистрация того же имени даёт конфликт транзакций
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrUserAlreadyExists
	}

	return err
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User

	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrUserNotFound
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	err := r.db.View(func(txn *badger.Txn) error {
		raw, err := getString(txn, usernameKey(username))
		if err != nil {
			return err
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse user id: %w", err)
		}

		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrUserNotFound
		}

		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return &user, nil
}
