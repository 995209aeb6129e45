// Package registry is the process-wide connection id -> peer directory.
// It is deliberately free of the user state type parameter S that
// handle.Handle[S] carries: Registry only ever needs to send frames and
// look peers up by id, never to read or mutate per-connection state, so
// keeping it generic-free is what lets one Registry serve every
// Server[S] regardless of S. It also avoids an import cycle between
// handle and room (room needs a sendable handle, handle needs room's
// event type); in Go neither package needs to import the other once
// both depend on this interface instead of on each other's concrete
// type.
package registry

import (
	"sync"

	"github.com/Guru901/Wynd/types"
)

// Peer is the subset of Handle's surface the Registry and room
// dispatchers need: enough to address and send to a connection without
// knowing its user state type.
type Peer interface {
	ID() types.ConnectionID
	Addr() string
	SendText(text string) error
	SendBinary(data []byte) error
	Close(code uint16, reason string) error
}

// Registry is the process-wide mapping of ConnectionID to Peer. Locking
// discipline: the lock is held only long enough to read or mutate the
// map itself; iteration methods snapshot under the lock and return
// before any send is attempted, so a slow or blocked peer send never
// holds up registry access from other goroutines.
type Registry struct {
	mu    sync.RWMutex
	peers map[types.ConnectionID]Peer
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{peers: make(map[types.ConnectionID]Peer)}
}

// Register adds a peer under id. Calling Register twice for the same id
// without an intervening Remove is an invariant violation; the second
// call leaves the existing entry in place and returns false so callers
// can detect it.
func (r *Registry) Register(id types.ConnectionID, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.peers[id]; exists {
		return false
	}
	r.peers[id] = p
	return true
}

// Remove deletes id from the registry. Idempotent.
func (r *Registry) Remove(id types.ConnectionID) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

// Get looks up the peer registered under id.
func (r *Registry) Get(id types.ConnectionID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// IterAll returns a snapshot of every registered peer. The snapshot is
// built under the read lock and returned before the lock is released to
// the caller's control, so the caller may send to every element without
// holding any Registry lock.
func (r *Registry) IterAll() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// IterExcept returns a snapshot of every registered peer except the one
// whose id matches except.
func (r *Registry) IterExcept(except types.ConnectionID) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for id, p := range r.peers {
		if id == except {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
