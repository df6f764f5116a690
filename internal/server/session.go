package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

// SessionState is the lifecycle stage of one connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session drives one connection through Connecting -> Authenticated -> Closed.
// Transitions are compare-and-swap, so close runs its side effects once even
// when the read pump and a shutdown race.
type Session struct {
	state    atomic.Int32
	identity domain.Identity
	client   *Client
	relay    *Relay
	log      *slog.Logger
}

func newSession(relay *Relay, addr string) *Session {
	return &Session{
		relay: relay,
		log:   relay.log.With("addr", addr),
	}
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) Identity() domain.Identity {
	return s.identity
}

func (s *Session) transition(from, to SessionState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// authenticate asks the authenticator for the identity behind the handshake.
// On failure the session is closed without touching the registry.
func (s *Session) authenticate(ctx context.Context, r *http.Request) error {
	if s.State() != StateConnecting {
		return fmt.Errorf("%w: session is %s", domain.ErrUnauthorized, s.State())
	}
	identity, err := s.relay.auth.Authenticate(ctx, r)
	if err != nil {
		s.transition(StateConnecting, StateClosed)
		if !errors.Is(err, domain.ErrUnauthorized) {
			err = fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		return err
	}
	s.identity = identity
	s.log = s.log.With("user", identity.ID)
	return nil
}

// open binds the upgraded connection under the verified identity.
func (s *Session) open(c *Client) bool {
	if s.identity.ID == "" || !s.transition(StateConnecting, StateAuthenticated) {
		return false
	}
	s.client = c
	s.relay.Connect(s.identity, c)
	return true
}

// abort closes a session whose connection never opened.
func (s *Session) abort() {
	s.transition(StateConnecting, StateClosed)
}

// close runs the disconnect effects once.
func (s *Session) close() {
	if !s.transition(StateAuthenticated, StateClosed) {
		s.abort()
		return
	}
	s.relay.Disconnect(s.identity, s.client)
}

// dispatch decodes one inbound frame and hands it to the relay. Bad frames
// and throttled signals are dropped; the connection stays open. Chat
// messages bypass the rate limit.
func (s *Session) dispatch(frame []byte) error {
	if s.State() != StateAuthenticated {
		return fmt.Errorf("session is %s", s.State())
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if env.Event != EventNewMessage && !s.client.allowSignal() {
		return fmt.Errorf("%w: %q", domain.ErrRateLimited, env.Event)
	}

	switch env.Event {
	case EventNewMessage:
		req, err := decodePayload[NewMessageRequest](env.Data)
		if err != nil {
			return err
		}
		s.relay.NewMessage(s.identity, req)

	case EventStartTyping, EventStopTyping:
		req, err := decodePayload[TypingRequest](env.Data)
		if err != nil {
			return err
		}
		s.relay.Typing(s.identity, env.Event, req)

	case EventChatJoined, EventChatLeaved:
		req, err := decodePayload[PresenceRequest](env.Data)
		if err != nil {
			return err
		}
		userID := req.UserID
		if userID == "" {
			userID = s.identity.ID
		}
		if env.Event == EventChatJoined {
			s.relay.ChatJoined(userID, req.Members)
		} else {
			s.relay.ChatLeft(userID, req.Members)
		}

	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Event)
	}
	return nil
}
