package cmd

import (
	"context"
	"fmt"

	"github.com/qrave1/GoldLink/internal/application/config"
	"github.com/qrave1/GoldLink/internal/infra/adapters/badger"
	"github.com/qrave1/GoldLink/internal/infra/adapters/memory"
	"github.com/qrave1/GoldLink/internal/infra/adapters/postgres"
	"github.com/qrave1/GoldLink/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/GoldLink/internal/usecase"
)

type storage struct {
	chats usecase.ChatStore
	users usecase.UserRepository
	close func() error
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		db, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}

		return &storage{
			chats: repository.NewChatRepo(db),
			users: repository.NewUserRepo(db),
			close: db.Close,
		}, nil

	case config.StorageDriverBadger:
		db, err := badger.Open(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, err
		}

		return &storage{
			chats: badger.NewChatStore(db),
			users: badger.NewUserRepository(db),
			close: db.Close,
		}, nil

	case config.StorageDriverMemory:
		return &storage{
			chats: memory.NewChatStore(),
			users: memory.NewUserRepository(),
			close: func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
