package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messagesCollection = "messages"

type MongoStore struct {
	client   *mongo.Client
	messages *mongo.Collection
}

// OpenMongo connects and pings before returning.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &MongoStore{
		client:   client,
		messages: client.Database(database).Collection(messagesCollection),
	}, nil
}

func (m *MongoStore) Save(ctx context.Context, msg domain.PersistedMessage) error {
	if _, err := m.messages.InsertOne(ctx, newRecord(msg, time.Now())); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// chatHistory returns the stored messages of a chat, oldest first.
func (m *MongoStore) chatHistory(ctx context.Context, chatID domain.ChatID) ([]domain.PersistedMessage, error) {
	cursor, err := m.messages.Find(ctx,
		bson.M{"chat": string(chatID)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []messageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	out := make([]domain.PersistedMessage, 0, len(records))
	for _, r := range records {
		out = append(out, r.toMessage())
	}
	return out, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
