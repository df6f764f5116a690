package server

import (
	"encoding/json"
	"strings"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

// Event names, identical in both directions where a signal is bidirectional.
const (
	EventNewMessage      = "new_message"
	EventNewMessageAlert = "new_message_alert"
	EventStartTyping     = "start_typing"
	EventStopTyping      = "stop_typing"
	EventChatJoined      = "chat_joined"
	EventChatLeaved      = "chat_leaved"
	EventOnlineUsers     = "online_users"
)

// Envelope is the JSON frame carried by every websocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessageRequest is the inbound new_message payload.
type NewMessageRequest struct {
	ChatID  domain.ChatID   `json:"chatId" validate:"required"`
	Members []domain.Member `json:"members" validate:"dive"`
	Message string          `json:"message"`
}

// TypingRequest is the inbound start_typing / stop_typing payload.
type TypingRequest struct {
	ChatID  domain.ChatID   `json:"chatId" validate:"required"`
	Members []domain.Member `json:"members" validate:"dive"`
}

// PresenceRequest is the inbound chat_joined / chat_leaved payload.
type PresenceRequest struct {
	UserID  domain.UserID   `json:"userId"`
	Members []domain.Member `json:"members" validate:"dive"`
}

// NewMessagePayload is the outbound new_message payload.
type NewMessagePayload struct {
	ChatID  domain.ChatID       `json:"chatId"`
	Message domain.MessageEvent `json:"message"`
}

// ChatPayload carries only the chat id: new_message_alert and typing signals.
type ChatPayload struct {
	ChatID domain.ChatID `json:"chatId"`
}

// BroadcastMessage encapsulates a frame sent to every registered client,
// including the originating client so it can be excluded from delivery.
type BroadcastMessage struct {
	Sender  *Client
	Payload []byte
}

// encodeEnvelope marshals a payload into a ready-to-send frame.
func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
