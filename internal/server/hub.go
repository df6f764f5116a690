package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub owns the set of upgraded connections. Registration and unregistration
// run on the Run goroutine; sends go straight to a client's buffered queue
// under the read lock.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
}

// NewHub creates a hub ready to be started with Run.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log.With("component", "hub"),
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", "panic", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run handles client registration and unregistration until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client registered", "addr", client.addr, "clients", clientCount)

	if !client.session.open(client) {
		h.log.Warn("Session could not be opened", "addr", client.addr, "state", client.session.State())
		h.detach(client)
		client.closeConnection()
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// remove detaches the client if still present and always closes its session;
// a client evicted for a full buffer arrives here already detached.
func (h *Hub) remove(client *Client) {
	if h.detach(client) {
		h.log.Info("Client unregistered", "addr", client.addr, "clients", h.count())
	}
	client.session.close()
}

// detach deletes the client and closes its send queue. It reports whether the
// client was still registered.
func (h *Hub) detach(client *Client) bool {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client)
	client.closed = true
	h.mutex.Unlock()

	close(client.send)
	return true
}

func (h *Hub) count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// enqueue registers a client, or reports false once the hub has stopped.
func (h *Hub) enqueue(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// leave hands the client to Run for unregistration. After shutdown there is
// no Run loop, so the read pump cleans up itself.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		h.detach(client)
		client.session.close()
	}
}

// broadcastAll sends the payload to every registered client except the sender.
func (h *Hub) broadcastAll(msg BroadcastMessage) {
	clients := h.getClientSnapshot()
	targetCount := h.calculateTargetCount(len(clients), msg.Sender, clients)

	h.log.Debug("Broadcasting message", "targets", targetCount)

	clientsToRemove := h.broadcastToClients(clients, msg)
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// calculateTargetCount counts the snapshot minus the sender when it is part of it.
func (h *Hub) calculateTargetCount(clientCount int, sender *Client, clients []*Client) int {
	targetCount := clientCount
	if sender != nil {
		for _, c := range clients {
			if c == sender {
				targetCount--
				break
			}
		}
	}
	return targetCount
}

func (h *Hub) broadcastToClients(clients []*Client, msg BroadcastMessage) []*Client {
	var clientsToRemove []*Client

	for _, client := range clients {
		if msg.Sender != nil && client == msg.Sender {
			continue
		}
		if !h.safeSend(client, msg.Payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	return clientsToRemove
}

// removeFailedClients detaches clients whose send buffer is full. Closing the
// queue makes the write pump close the socket, which ends the read pump and
// unregisters the session.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	for _, client := range clientsToRemove {
		if h.detach(client) {
			h.log.Warn("Client removed due to full send buffer", "addr", client.addr)
		}
	}
}

func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	clients := h.getClientSnapshot()
	for _, client := range clients {
		client.closeConnection()
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops Run, closes every connection and waits for the pumps to
// finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
