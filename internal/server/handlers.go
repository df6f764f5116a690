package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

// WebSocketHandler authenticates the handshake, upgrades it and hands the
// connection to the hub. A rejected handshake is answered with 401 and
// leaves the registry and presence state untouched.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	session := newSession(s.relay, r.RemoteAddr)
	if err := session.authenticate(r.Context(), r); err != nil {
		s.log.Info("WebSocket handshake rejected", "addr", r.RemoteAddr, "error", err)
		status := http.StatusUnauthorized
		if !errors.Is(err, domain.ErrUnauthorized) {
			status = http.StatusInternalServerError
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		session.abort()
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, session, r.RemoteAddr, s.cfg)
	if !s.hub.enqueue(client) {
		session.abort()
		client.closeConnection()
		s.log.Info("Connection refused during shutdown", "addr", r.RemoteAddr)
	}
}

// HealthHandler reports that the server is up.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running! Online users: %d", len(s.relay.OnlineUsers()))
}

// LogsHandler serves the request log file as plain text.
func (s *Server) LogsHandler(w http.ResponseWriter, _ *http.Request) {
	content, err := os.ReadFile(s.cfg.LogFile)
	if err != nil {
		s.log.Error("Error reading log file", "path", s.cfg.LogFile, "error", err)
		http.Error(w, "Error reading log file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}
