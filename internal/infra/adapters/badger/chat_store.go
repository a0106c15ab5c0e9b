package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/models"
)

const (
	sessionPrefix = "session:"
	activePrefix  = "active:"
	messagePrefix = "msg:"
)

func sessionKey(id uuid.UUID) []byte {
	return []byte(sessionPrefix + id.String())
}

func activeKey(participantID string) []byte {
	return []byte(activePrefix + participantID)
}

func messagesPrefix(sessionID uuid.UUID) []byte {
	return []byte(messagePrefix + sessionID.String() + ":")
}

// messageKey - seq с ведущими нулями, чтобы лексикографический порядок совпадал с порядком приёма
func messageKey(sessionID uuid.UUID, seq int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d", messagePrefix, sessionID, seq))
}

type ChatStore struct {
	db *badger.DB
}

func NewChatStore(db *badger.DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) UpsertSession(ctx context.Context, session *models.ChatSession) error {
	summary := session.Summary()

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(sessionKey(session.ID), data); err != nil {
			return err
		}

		key := activeKey(session.ParticipantID)

		if session.IsActive() {
			return txn.Set(key, []byte(session.ID.String()))
		}

		current, err := getString(txn, key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}

			return err
		}

		if current == session.ID.String() {
			return txn.Delete(key)
		}

		return nil
	})
}

func (s *ChatStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession

	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, sessionKey(id), &session)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrSessionNotFound
		}

		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (s *ChatStore) FindActiveSession(ctx context.Context, participantID string) (*models.ChatSession, error) {
	var session models.ChatSession

	err := s.db.View(func(txn *badger.Txn) error {
		raw, err := getString(txn, activeKey(participantID))
		if err != nil {
			return err
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse active session id: %w", err)
		}

		return getJSON(txn, sessionKey(id), &session)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrSessionNotFound
		}

		return nil, fmt.Errorf("find active session: %w", err)
	}

	return &session, nil
}

func (s *ChatStore) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	sessions := make([]models.ChatSession, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(sessionPrefix)

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session models.ChatSession

			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				return err
			}

			sessions = append(sessions, session)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

func (s *ChatStore) InsertMessage(ctx context.Context, message models.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(message.SessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrSessionNotFound
			}

			return err
		}

		key := messageKey(message.SessionID, message.Seq)

		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("message seq %d already stored", message.Seq)
		}

		return txn.Set(key, data)
	})
}

func (s *ChatStore) LoadMessagesBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	messages := make([]models.Message, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := messagesPrefix(sessionID)

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Идём с конца, чтобы взять последние limit
		for it.Seek(append(slices.Clone(prefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}

			var m models.Message

			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}

			messages = append(messages, m)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	slices.Reverse(messages)

	return messages, nil
}

func (s *ChatStore) MarkMessagesRead(ctx context.Context, sessionID uuid.UUID, exceptSender models.Sender) error {
	return s.db.Update(func(txn *badger.Txn) error {
		prefix := messagesPrefix(sessionID)

		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		type update struct {
			key  []byte
			data []byte
		}

		var updates []update

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var m models.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}

			if m.Sender == exceptSender || m.IsRead {
				continue
			}

			m.IsRead = true

			data, err := json.Marshal(m)
			if err != nil {
				return err
			}

			updates = append(updates, update{key: item.KeyCopy(nil), data: data})
		}

		for _, u := range updates {
			if err := txn.Set(u.key, u.data); err != nil {
				return err
			}
		}

		return nil
	})
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err != nil {
		return "", err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}

	return string(val), nil
}
