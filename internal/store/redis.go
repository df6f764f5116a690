package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/redis/go-redis/v9"
)

// streamMaxLen caps each chat stream; trimming is approximate.
const streamMaxLen = 100_000

// RedisStore appends each message to a per-chat stream.
type RedisStore struct {
	rdb *redis.Client
}

func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisStore{rdb: rdb}, nil
}

func chatStream(chatID domain.ChatID) string {
	return fmt.Sprintf("chat:%s:messages", chatID)
}

func (r *RedisStore) Save(ctx context.Context, msg domain.PersistedMessage) error {
	record := newRecord(msg, time.Now())
	args := &redis.XAddArgs{
		Stream: chatStream(msg.ChatID),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"content":   record.Content,
			"sender":    record.Sender,
			"chat":      record.Chat,
			"createdAt": record.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := r.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// chatHistory returns the stored messages of a chat, oldest first.
func (r *RedisStore) chatHistory(ctx context.Context, chatID domain.ChatID) ([]domain.PersistedMessage, error) {
	entries, err := r.rdb.XRange(ctx, chatStream(chatID), "-", "+").Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.PersistedMessage, 0, len(entries))
	for _, e := range entries {
		content, _ := e.Values["content"].(string)
		sender, _ := e.Values["sender"].(string)
		out = append(out, domain.PersistedMessage{
			Content:  content,
			SenderID: domain.UserID(sender),
			ChatID:   chatID,
		})
	}
	return out, nil
}

func (r *RedisStore) Close(context.Context) error {
	return r.rdb.Close()
}
