package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recordingHandle is a registry handle that keeps every frame it accepts.
type recordingHandle struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (h *recordingHandle) Send(frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return false
	}
	h.frames = append(h.frames, frame)
	return true
}

func (h *recordingHandle) envelopes(t *testing.T) []Envelope {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Envelope, 0, len(h.frames))
	for _, frame := range h.frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func (h *recordingHandle) events(t *testing.T) []string {
	t.Helper()
	var names []string
	for _, env := range h.envelopes(t) {
		names = append(names, env.Event)
	}
	return names
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []BroadcastMessage
}

func (b *recordingBroadcaster) broadcastAll(msg BroadcastMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *recordingBroadcaster) sent() []BroadcastMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BroadcastMessage(nil), b.messages...)
}

// boundHandle returns the handle bound to id, or nil.
func boundHandle(relay *Relay, id domain.UserID) registry.Handle {
	if bound := relay.conns.Lookup(id); len(bound) == 1 {
		return bound[0]
	}
	return nil
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func testConfig() Config {
	return sanitizeConfig(DefaultConfig())
}

func members(ids ...domain.UserID) []domain.Member {
	out := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Member{ID: id, Name: string(id)})
	}
	return out
}

func decodeData[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func mustEnvelope(t *testing.T, event string, payload any) []byte {
	t.Helper()
	frame, err := encodeEnvelope(event, payload)
	require.NoError(t, err)
	return frame
}
