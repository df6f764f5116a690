// Package store persists chat messages handed over by the relay.
//
// The relay never reads back through this package; history retrieval goes
// through a separate channel. Every driver writes one record per message and
// reports failures to the caller, which only logs them.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

const (
	DriverMongo    = "mongo"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = fmt.Errorf("unknown store driver")

type Store interface {
	Save(ctx context.Context, msg domain.PersistedMessage) error
	Close(ctx context.Context) error
}

type Config struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	BadgerPath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
}

// Open connects the configured driver.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case DriverMongo:
		s, err = OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case DriverBadger:
		s, err = OpenBadger(cfg.BadgerPath)
	case DriverRedis:
		s, err = OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	log.Info("Message store opened", "driver", cfg.Driver)
	return s, nil
}

// messageRecord mirrors the message document of the chat backend:
// content is stored twice because clients read encryptedContent.
type messageRecord struct {
	Content          string    `bson:"content"`
	EncryptedContent string    `bson:"encryptedContent"`
	Sender           string    `bson:"sender"`
	Chat             string    `bson:"chat"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func newRecord(msg domain.PersistedMessage, at time.Time) messageRecord {
	at = at.UTC()
	return messageRecord{
		Content:          msg.Content,
		EncryptedContent: msg.Content,
		Sender:           string(msg.SenderID),
		Chat:             string(msg.ChatID),
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func (r messageRecord) toMessage() domain.PersistedMessage {
	return domain.PersistedMessage{
		Content:  r.Content,
		SenderID: domain.UserID(r.Sender),
		ChatID:   domain.ChatID(r.Chat),
	}
}
