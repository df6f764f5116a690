package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/Tyrowin/chatrelay/internal/fanout"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/samber/lo"
)

// broadcaster reaches every registered client, not only bound ones.
type broadcaster interface {
	broadcastAll(msg BroadcastMessage)
}

// Relay owns the process-scoped presence state and turns session events into
// addressed frames. It is created once per Server; nothing else mutates the
// registry or the presence tracker.
type Relay struct {
	conns   *registry.Registry
	online  *presence.Tracker
	targets *fanout.Resolver
	auth    Authenticator
	store   MessageStore
	hub     broadcaster
	log     *slog.Logger

	persistTimeout      time.Duration
	typingExcludeSender bool
	now                 func() time.Time

	mu       sync.RWMutex
	draining bool
	pending  sync.WaitGroup
	drain    sync.Once
	drained  chan struct{}
}

// NewRelay wires the relay collaborators. The hub may be nil in tests that
// never disconnect a session.
func NewRelay(cfg Config, auth Authenticator, store MessageStore, hub broadcaster, log *slog.Logger) *Relay {
	conns := registry.New()
	return &Relay{
		conns:               conns,
		online:              presence.NewTracker(),
		targets:             fanout.NewResolver(conns),
		auth:                auth,
		store:               store,
		hub:                 hub,
		log:                 log.With("component", "relay"),
		persistTimeout:      cfg.PersistTimeout,
		typingExcludeSender: cfg.TypingExcludeSender,
		now:                 time.Now,
		drained:             make(chan struct{}),
	}
}

// Connect binds a freshly authenticated connection.
func (r *Relay) Connect(id domain.Identity, h registry.Handle) {
	if previous := r.conns.Bind(id.ID, h); previous != nil {
		r.log.Info("Connection replaced by newer one", "user", id.ID)
	}
	r.log.Debug("Connection bound", "user", id.ID, "bound", r.conns.Len())
}

// Disconnect releases the connection, marks the user offline and broadcasts
// the resulting online set to every connected client.
func (r *Relay) Disconnect(id domain.Identity, h registry.Handle) {
	if !r.conns.Release(id.ID, h) {
		r.log.Debug("Closed connection was no longer bound", "user", id.ID)
	}
	r.online.MarkOffline(id.ID)
	r.log.Info("User disconnected", "user", id.ID, "name", id.Name)

	frame, err := encodeEnvelope(EventOnlineUsers, r.online.Snapshot())
	if err != nil {
		r.log.Error("Failed to encode online users", "error", err)
		return
	}
	if r.hub == nil {
		return
	}
	sender, _ := h.(*Client)
	r.hub.broadcastAll(BroadcastMessage{Sender: sender, Payload: frame})
}

// NewMessage delivers a message and its alert to the connected members other
// than the sender, then submits it for persistence. Delivery does not wait
// for, and is not undone by, the store.
func (r *Relay) NewMessage(from domain.Identity, req NewMessageRequest) domain.MessageEvent {
	evt := domain.NewMessageEvent(req.ChatID, from, req.Message, r.now())
	targets := r.targets.ResolveTargets(req.Members, from.ID)

	r.log.Info("Message received",
		"from", from.ID, "name", from.Name, "chat", req.ChatID,
		"recipients", recipients(req.Members, from.ID), "connected", len(targets))

	r.emit(targets, EventNewMessage, NewMessagePayload{ChatID: req.ChatID, Message: evt})
	r.emit(targets, EventNewMessageAlert, ChatPayload{ChatID: req.ChatID})

	r.persist(domain.PersistedMessage{
		Content:  req.Message,
		SenderID: from.ID,
		ChatID:   req.ChatID,
	})
	return evt
}

// Typing relays start_typing or stop_typing to the chat members.
func (r *Relay) Typing(from domain.Identity, event string, req TypingRequest) {
	var targets []registry.Handle
	if r.typingExcludeSender {
		targets = r.targets.ResolveTargets(req.Members, from.ID)
	} else {
		targets = r.targets.ResolveTargets(req.Members)
	}
	r.emit(targets, event, ChatPayload{ChatID: req.ChatID})
}

// ChatJoined marks userID online and sends the online set to the members.
func (r *Relay) ChatJoined(userID domain.UserID, members []domain.Member) []domain.UserID {
	r.online.MarkOnline(userID)
	return r.publishOnline(members)
}

// ChatLeft marks userID offline and sends the online set to the members.
func (r *Relay) ChatLeft(userID domain.UserID, members []domain.Member) []domain.UserID {
	r.online.MarkOffline(userID)
	return r.publishOnline(members)
}

func (r *Relay) publishOnline(members []domain.Member) []domain.UserID {
	snapshot := r.online.Snapshot()
	r.emit(r.targets.ResolveTargets(members), EventOnlineUsers, snapshot)
	return snapshot
}

// emit encodes once and queues the frame on each target. A full target is
// dropped by its own Send; the others are unaffected.
func (r *Relay) emit(targets []registry.Handle, event string, payload any) {
	if len(targets) == 0 {
		return
	}
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		r.log.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	delivered := 0
	for _, h := range targets {
		if h.Send(frame) {
			delivered++
		}
	}
	r.log.Debug("Event emitted", "event", event, "targets", len(targets), "delivered", delivered)
}

// persist writes in the background with its own deadline; a pending write
// outlives the connection that produced it. Once the relay drains, new
// writes are refused.
func (r *Relay) persist(msg domain.PersistedMessage) {
	if r.store == nil {
		return
	}
	r.mu.RLock()
	if r.draining {
		r.mu.RUnlock()
		r.log.Warn("Relay is draining; message not persisted",
			"chat", msg.ChatID, "from", msg.SenderID)
		return
	}
	r.pending.Add(1)
	r.mu.RUnlock()

	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
		defer cancel()

		if err := r.store.Save(ctx, msg); err != nil {
			r.log.Error("Message persistence failed",
				"chat", msg.ChatID, "from", msg.SenderID, "error", err)
		}
	}()
}

// Drain stops accepting writes and blocks until the pending ones finish or
// the timeout elapses. It may be called again to keep waiting.
func (r *Relay) Drain(timeout time.Duration) error {
	r.drain.Do(func() {
		r.mu.Lock()
		r.draining = true
		r.mu.Unlock()

		go func() {
			r.pending.Wait()
			close(r.drained)
		}()
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.drained:
		return nil
	case <-timer.C:
		r.log.Warn("Pending message writes did not finish before timeout")
		return context.DeadlineExceeded
	}
}

// OnlineUsers returns the current online set.
func (r *Relay) OnlineUsers() []domain.UserID {
	return r.online.Snapshot()
}

func recipients(members []domain.Member, sender domain.UserID) []string {
	return lo.FilterMap(members, func(m domain.Member, _ int) (string, bool) {
		return string(m.ID), m.ID != sender
	})
}
