// Package registry maps authenticated users to their single live connection.
//
// A user has at most one bound handle. A later Bind for the same user
// replaces the earlier handle (last connect wins); the replaced handle is not
// closed, it simply stops being reachable through the registry.
package registry

import (
	"sync"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

// Handle is a live connection that can be addressed with an encoded frame.
// Send must not block; it reports whether the frame was queued.
type Handle interface {
	Send(frame []byte) bool
}

// Registry is safe for concurrent use. Every method is a single atomic step
// with respect to the others.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]Handle
}

func New() *Registry {
	return &Registry{conns: make(map[domain.UserID]Handle)}
}

// Bind inserts or overwrites the handle for userID and returns the handle it
// replaced, or nil.
func (r *Registry) Bind(userID domain.UserID, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.conns[userID]
	r.conns[userID] = h
	return previous
}

// Unbind removes the binding for userID. Missing entries are ignored.
func (r *Registry) Unbind(userID domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; !ok {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Release removes the binding for userID only while it still points at h.
// A connection that was replaced by a newer one cannot evict its successor.
func (r *Registry) Release(userID domain.UserID, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != h {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the bound handles for ids, in the order each id first
// appears. Unbound and repeated ids are skipped.
func (r *Registry) Lookup(ids ...domain.UserID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]Handle, 0, len(ids))
	seen := make(map[domain.UserID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if h, ok := r.conns[id]; ok {
			handles = append(handles, h)
		}
	}
	return handles
}

// Len returns the number of bound users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
