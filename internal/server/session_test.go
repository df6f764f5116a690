package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/Tyrowin/chatrelay/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sessionFixture struct {
	relay   *Relay
	hub     *Hub
	auth    *mocks.MockAuthenticator
	clients *recordingBroadcaster
}

func newSessionFixture(t *testing.T) sessionFixture {
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	clients := &recordingBroadcaster{}
	return sessionFixture{
		relay:   NewRelay(testConfig(), auth, nil, clients, testLogger()),
		hub:     NewHub(testLogger()),
		auth:    auth,
		clients: clients,
	}
}

// openSession authenticates as id and binds a transport-less client.
func (f sessionFixture) openSession(t *testing.T, id domain.Identity) *Session {
	t.Helper()
	f.auth.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(id, nil)

	s := newSession(f.relay, "127.0.0.1:5000")
	require.NoError(t, s.authenticate(context.Background(), httptest.NewRequest("GET", "/ws", nil)))
	require.True(t, s.open(NewClient(nil, f.hub, s, "127.0.0.1:5000", testConfig())))
	return s
}

func TestSessionState_String(t *testing.T) {
	req := require.New(t)
	req.Equal("connecting", StateConnecting.String())
	req.Equal("authenticated", StateAuthenticated.String())
	req.Equal("closed", StateClosed.String())
	req.Equal("state(7)", SessionState(7).String())
}

func TestSession_Rejected_Handshake_Leaves_No_Trace(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
	}{
		{name: "unauthorized", err: domain.ErrUnauthorized},
		{name: "other failure", err: errors.New("keyfunc exploded")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			f := newSessionFixture(t)
			f.auth.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(domain.Identity{}, tc.err)

			s := newSession(f.relay, "127.0.0.1:5000")
			err := s.authenticate(context.Background(), httptest.NewRequest("GET", "/ws", nil))

			req.ErrorIs(err, domain.ErrUnauthorized)
			req.Equal(StateClosed, s.State())
			req.False(s.open(NewClient(nil, f.hub, s, "127.0.0.1:5000", testConfig())))
			req.Zero(f.relay.conns.Len())
			req.Empty(f.relay.OnlineUsers())
			req.Empty(f.clients.sent())
		})
	}
}

func TestSession_Lifecycle(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	// Given an authenticated and opened session
	s := f.openSession(t, alice)
	req.Equal(StateAuthenticated, s.State())
	req.Equal(alice, s.Identity())
	req.Same(s.client, boundHandle(f.relay, "A"))

	// When it closes twice
	s.close()
	s.close()

	// Then the disconnect effects ran once
	req.Equal(StateClosed, s.State())
	req.Nil(boundHandle(f.relay, "A"))
	req.Len(f.clients.sent(), 1)
	req.Error(s.dispatch([]byte(`{"event":"start_typing","data":{"chatId":"c-1"}}`)))
}

func TestSession_Close_Before_Open_Skips_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)
	f.auth.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(alice, nil)

	s := newSession(f.relay, "127.0.0.1:5000")
	req.NoError(s.authenticate(context.Background(), httptest.NewRequest("GET", "/ws", nil)))
	s.close()

	req.Equal(StateClosed, s.State())
	req.Empty(f.clients.sent())
}

func TestSession_Dispatch_Before_Open_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)
	s := newSession(f.relay, "127.0.0.1:5000")

	err := s.dispatch([]byte(`{"event":"chat_joined","data":{"members":[]}}`))

	req.Error(err)
	req.Empty(f.relay.OnlineUsers())
}

func TestSession_Dispatch_Routes_Events(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)
	b := &recordingHandle{}
	f.relay.Connect(bob, b)
	s := f.openSession(t, alice)

	req.NoError(s.dispatch([]byte(`{"event":"chat_joined","data":{"members":[{"_id":"A"},{"_id":"B"}]}}`)))
	req.NoError(s.dispatch([]byte(`{"event":"start_typing","data":{"chatId":"c-1","members":[{"_id":"A"},{"_id":"B"}]}}`)))
	req.NoError(s.dispatch([]byte(`{"event":"new_message","data":{"chatId":"c-1","members":[{"_id":"A","name":"Alice"},{"_id":"B","name":"Bob"}],"message":"hello"}}`)))
	req.NoError(s.dispatch([]byte(`{"event":"stop_typing","data":{"chatId":"c-1","members":[{"_id":"B"}]}}`)))
	req.NoError(s.dispatch([]byte(`{"event":"chat_leaved","data":{"userId":"A","members":[{"_id":"B"}]}}`)))

	req.Equal([]string{
		EventOnlineUsers,
		EventStartTyping,
		EventNewMessage,
		EventNewMessageAlert,
		EventStopTyping,
		EventOnlineUsers,
	}, b.events(t))

	got := b.envelopes(t)
	req.Equal([]domain.UserID{"A"}, decodeData[[]domain.UserID](t, got[0]))
	req.Equal([]domain.UserID{}, decodeData[[]domain.UserID](t, got[5]))
}

func TestSession_Rate_Limit_Spares_Chat_Messages(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)
	b := &recordingHandle{}
	f.relay.Connect(bob, b)
	s := f.openSession(t, alice)
	s.client.rateLimiter = newRateLimiter(RateLimitConfig{Burst: 1, RefillInterval: time.Hour})

	// Given the only signal token is spent
	req.NoError(s.dispatch([]byte(`{"event":"start_typing","data":{"chatId":"c-1","members":[{"_id":"B"}]}}`)))
	err := s.dispatch([]byte(`{"event":"stop_typing","data":{"chatId":"c-1","members":[{"_id":"B"}]}}`))
	req.ErrorIs(err, domain.ErrRateLimited)

	// When messages keep coming
	for i := 0; i < 3; i++ {
		req.NoError(s.dispatch([]byte(`{"event":"new_message","data":{"chatId":"c-1","members":[{"_id":"B"}],"message":"hi"}}`)))
	}

	// Then every one was delivered
	req.Equal([]string{
		EventStartTyping,
		EventNewMessage, EventNewMessageAlert,
		EventNewMessage, EventNewMessageAlert,
		EventNewMessage, EventNewMessageAlert,
	}, b.events(t))
}

func TestSession_Dispatch_Drops_Bad_Frames(t *testing.T) {
	for _, tc := range []struct {
		name  string
		frame string
		err   error
	}{
		{name: "not json", frame: `hello`, err: domain.ErrInvalidPayload},
		{name: "unknown event", frame: `{"event":"delete_chat","data":{}}`, err: domain.ErrUnknownEvent},
		{name: "missing data", frame: `{"event":"new_message"}`, err: domain.ErrInvalidPayload},
		{name: "missing chat id", frame: `{"event":"new_message","data":{"members":[],"message":"x"}}`, err: domain.ErrInvalidPayload},
		{name: "member without id", frame: `{"event":"start_typing","data":{"chatId":"c-1","members":[{"name":"B"}]}}`, err: domain.ErrInvalidPayload},
		{name: "members not a list", frame: `{"event":"chat_joined","data":{"members":"B"}}`, err: domain.ErrInvalidPayload},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			f := newSessionFixture(t)
			b := &recordingHandle{}
			f.relay.Connect(bob, b)
			s := f.openSession(t, alice)

			err := s.dispatch([]byte(tc.frame))

			req.ErrorIs(err, tc.err)
			req.Equal(StateAuthenticated, s.State())
			req.Empty(b.envelopes(t))
		})
	}
}
