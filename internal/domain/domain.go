// Package domain holds the identifiers and payload types shared by the
// registry, presence, fan-out and relay packages.
// No transport or storage logic belongs here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserID identifies an authenticated user.
type UserID string

// ChatID identifies a chat (direct or group).
type ChatID string

// Member is a chat participant as sent by clients. Two members are the same
// participant when their IDs match.
type Member struct {
	ID   UserID `json:"_id" validate:"required"`
	Name string `json:"name"`
}

// Identity is the verified user behind a connection.
type Identity struct {
	ID   UserID
	Name string
}

// Sender is the author block embedded in a live MessageEvent.
type Sender struct {
	ID   UserID `json:"_id"`
	Name string `json:"name"`
}

// MessageEvent is the transient message pushed to live recipients. Its ID is
// generated per broadcast and unrelated to any identifier assigned by storage.
type MessageEvent struct {
	ID        uuid.UUID `json:"_id"`
	ChatID    ChatID    `json:"chat"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessageEvent builds a MessageEvent with a fresh random ID.
func NewMessageEvent(chatID ChatID, from Identity, content string, at time.Time) MessageEvent {
	return MessageEvent{
		ID:     uuid.New(),
		ChatID: chatID,
		Sender: Sender{
			ID:   from.ID,
			Name: from.Name,
		},
		Content:   content,
		CreatedAt: at.UTC(),
	}
}

// PersistedMessage is what gets handed to the durable store.
type PersistedMessage struct {
	Content  string
	SenderID UserID
	ChatID   ChatID
}

// MemberIDs returns the ids of members in input order.
func MemberIDs(members []Member) []UserID {
	ids := make([]UserID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}
