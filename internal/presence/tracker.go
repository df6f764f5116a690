// Package presence tracks which users have declared themselves online.
//
// Presence is an explicit signal: a connected user is not online until a
// join is recorded, and a leave or disconnect takes them out again.
package presence

import (
	"slices"
	"sync"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

type Tracker struct {
	mu     sync.RWMutex
	online map[domain.UserID]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{online: make(map[domain.UserID]struct{})}
}

// MarkOnline adds id to the online set and reports whether it was absent.
func (t *Tracker) MarkOnline(id domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.online[id]; ok {
		return false
	}
	t.online[id] = struct{}{}
	return true
}

// MarkOffline removes id from the online set and reports whether it was present.
func (t *Tracker) MarkOffline(id domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.online[id]; !ok {
		return false
	}
	delete(t.online, id)
	return true
}

// Snapshot returns a copy of the online set. The slice is never nil so it
// encodes as an empty JSON array; the order is sorted but callers must not
// rely on it.
func (t *Tracker) Snapshot() []domain.UserID {
	t.mu.RLock()
	ids := make([]domain.UserID, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.online)
}
