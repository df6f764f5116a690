package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id         UUID PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and creates the messages table when missing.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createMessagesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Save(ctx context.Context, msg domain.PersistedMessage) error {
	record := newRecord(msg, time.Now())
	_, err := p.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), record.Chat, record.Sender, record.Content, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// chatHistory returns the stored messages of a chat, oldest first.
func (p *PostgresStore) chatHistory(ctx context.Context, chatID domain.ChatID) ([]domain.PersistedMessage, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT sender_id, content FROM messages WHERE chat_id = $1 ORDER BY created_at`, string(chatID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PersistedMessage
	for rows.Next() {
		var sender, content string
		if err := rows.Scan(&sender, &content); err != nil {
			return nil, err
		}
		out = append(out, domain.PersistedMessage{
			Content:  content,
			SenderID: domain.UserID(sender),
			ChatID:   chatID,
		})
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close(context.Context) error {
	p.pool.Close()
	return nil
}
