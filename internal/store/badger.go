package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

type BadgerStore struct {
	db *badger.DB
}

func OpenBadger(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// messageKey is "msg:{chat}:{unix_nano padded to 19 digits}:{uuid}" so a
// prefix scan over one chat returns messages in chronological order, and two
// messages written in the same nanosecond do not collide.
func messageKey(chatID domain.ChatID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", chatID, at.UnixNano(), id))
}

func (b *BadgerStore) Save(_ context.Context, msg domain.PersistedMessage) error {
	record := newRecord(msg, time.Now())
	value, err := bson.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := messageKey(msg.ChatID, record.CreatedAt, uuid.New())
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// chatHistory returns the stored messages of a chat, oldest first.
func (b *BadgerStore) chatHistory(chatID domain.ChatID) ([]domain.PersistedMessage, error) {
	var out []domain.PersistedMessage
	prefix := []byte(fmt.Sprintf("msg:%s:", chatID))

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var record messageRecord
				if err := bson.Unmarshal(value, &record); err != nil {
					return err
				}
				out = append(out, record.toMessage())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (b *BadgerStore) Close(context.Context) error {
	return b.db.Close()
}
