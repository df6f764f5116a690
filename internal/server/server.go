package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Server is one relay process: the hub of upgraded connections, the relay
// holding presence state and the HTTP surface in front of them.
type Server struct {
	cfg      Config
	hub      *Hub
	relay    *Relay
	origins  *originPolicy
	upgrader websocket.Upgrader
	http     *http.Server
	log      *slog.Logger
}

// New builds a server. Start must be called to run the hub and listen.
func New(cfg Config, auth Authenticator, store MessageStore, log *slog.Logger) *Server {
	cfg = sanitizeConfig(cfg)
	hub := NewHub(log)

	s := &Server{
		cfg:     cfg,
		hub:     hub,
		relay:   NewRelay(cfg, auth, store, hub, log),
		origins: newOriginPolicy(cfg.AllowedOrigins, log),
		log:     log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	s.http = CreateServer(cfg.Port, s.Routes())
	return s
}

// Handler exposes the router, for tests that serve it themselves.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Relay exposes the process presence state.
func (s *Server) Relay() *Relay {
	return s.relay
}

// StartHub runs the hub loop in the background.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

// Start runs the hub and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.StartHub()
	if err := StartServer(s.http, s.log); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes the open ones and waits for
// in-flight message writes, each step bounded by the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := ShutdownServer(ctx, s.http, s.log); err != nil {
		errs = append(errs, err)
	}
	if err := s.hub.Shutdown(s.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := s.relay.Drain(s.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
