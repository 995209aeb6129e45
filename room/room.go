// Package room implements named membership groups with serialized
// fan-out: each room runs its own dispatcher goroutine draining a
// buffered channel of events, so intra-room delivery order is an actual
// queue invariant rather than something only true because the caller
// happened to hold a lock. Like registry, room is free of the user
// state type parameter S; it only ever talks to connections through
// the registry.Peer interface.
package room

import (
	"log/slog"
	"sync"

	"github.com/Guru901/Wynd/registry"
	"github.com/Guru901/Wynd/types"
)

// EventKind tags the variant of an Event.
type EventKind int

const (
	// Join adds a connection to the room's membership.
	Join EventKind = iota
	// Leave removes a connection from the room's membership.
	Leave
	// Text fans a text payload out to the room's members.
	Text
	// Binary fans a binary payload out to the room's members.
	Binary
)

// Event is the tagged union the dispatcher goroutine drains in arrival
// order.
type Event struct {
	Kind           EventKind
	SenderID       types.ConnectionID
	Peer           registry.Peer // set for Join
	Text           string        // set for Text
	Binary         []byte        // set for Binary
	IncludeSender  bool          // set for Text/Binary
}

// Room is a named membership group with its own event queue and
// dispatcher goroutine. Membership is mutated only by the dispatcher;
// JoinedRooms-style reads take the same lock so they observe a
// consistent snapshot without requiring a round trip through the queue.
type Room struct {
	name    types.RoomName
	mu      sync.RWMutex
	members map[types.ConnectionID]registry.Peer
	events  chan Event
}

func newRoom(name types.RoomName, capacity int) *Room {
	return &Room{
		name:    name,
		members: make(map[types.ConnectionID]registry.Peer),
		events:  make(chan Event, capacity),
	}
}

func (r *Room) hasMember(id types.ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

func (r *Room) snapshotMembers() map[types.ConnectionID]registry.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(map[types.ConnectionID]registry.Peer, len(r.members))
	for id, p := range r.members {
		snap[id] = p
	}
	return snap
}

// Table maps room names to Rooms, created lazily on first reference and
// removed once a Leave drains the last member.
type Table struct {
	mu       sync.RWMutex
	rooms    map[types.RoomName]*Room
	capacity int
	logger   *slog.Logger
}

// NewTable creates a Table whose rooms are given channel capacity
// buffered event queues.
func NewTable(capacity int, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		rooms:    make(map[types.RoomName]*Room),
		capacity: capacity,
		logger:   logger,
	}
}

// getOrCreate returns the Room for name, constructing it and spawning
// its dispatcher goroutine if this is the first reference. Insertion
// into the table happens before this call returns, so a concurrent
// getOrCreate for the same name observes the same *Room.
func (t *Table) getOrCreate(name types.RoomName) *Room {
	t.mu.Lock()
	r, ok := t.rooms[name]
	if !ok {
		r = newRoom(name, t.capacity)
		t.rooms[name] = r
		go t.dispatch(r)
	}
	t.mu.Unlock()
	return r
}

// enqueue sends ev to r's queue, tolerating a race with room shutdown:
// if the dispatcher closed r.events after the caller looked r up (but
// before this send), the send panics; that panic is swallowed since a
// room closing out from under a concurrent sender is an expected race,
// not a failure.
func (t *Table) enqueue(r *Room, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Debug("room event dropped, room closed", "room", r.name)
		}
	}()
	r.events <- ev
}

// Join enqueues a Join event for id, creating the room if it does not
// already exist.
func (t *Table) Join(name types.RoomName, id types.ConnectionID, p registry.Peer) {
	r := t.getOrCreate(name)
	t.enqueue(r, Event{Kind: Join, SenderID: id, Peer: p})
}

// Leave enqueues a Leave event for id. If name does not exist this is a
// silent no-op (there is nothing to leave).
func (t *Table) Leave(name types.RoomName, id types.ConnectionID) {
	t.mu.RLock()
	r, ok := t.rooms[name]
	t.mu.RUnlock()
	if !ok {
		return
	}
	t.enqueue(r, Event{Kind: Leave, SenderID: id})
}

// Text enqueues a text fan-out event for name. A reference to a
// not-yet-existing room creates it.
func (t *Table) Text(name types.RoomName, senderID types.ConnectionID, data string, includeSender bool) {
	r := t.getOrCreate(name)
	t.enqueue(r, Event{Kind: Text, SenderID: senderID, Text: data, IncludeSender: includeSender})
}

// Binary enqueues a binary fan-out event for name, symmetrical to Text.
func (t *Table) Binary(name types.RoomName, senderID types.ConnectionID, data []byte, includeSender bool) {
	r := t.getOrCreate(name)
	t.enqueue(r, Event{Kind: Binary, SenderID: senderID, Binary: data, IncludeSender: includeSender})
}

// JoinedRooms returns a snapshot of every room id currently belongs to,
// served directly from Table/Room membership.
func (t *Table) JoinedRooms(id types.ConnectionID) []types.RoomName {
	t.mu.RLock()
	rooms := make([]*Room, 0, len(t.rooms))
	names := make([]types.RoomName, 0, len(t.rooms))
	for name, r := range t.rooms {
		rooms = append(rooms, r)
		names = append(names, name)
	}
	t.mu.RUnlock()

	out := make([]types.RoomName, 0, len(rooms))
	for i, r := range rooms {
		if r.hasMember(id) {
			out = append(out, names[i])
		}
	}
	return out
}

// dispatch is the per-room goroutine: the sole writer of r.members and
// the sole reader of r.events. It drains events strictly in arrival
// order, so fan-out from a single sender to this room is delivered to
// every member in enqueue order.
func (t *Table) dispatch(r *Room) {
	for ev := range r.events {
		switch ev.Kind {
		case Join:
			r.mu.Lock()
			r.members[ev.SenderID] = ev.Peer
			r.mu.Unlock()

		case Leave:
			r.mu.Lock()
			delete(r.members, ev.SenderID)
			empty := len(r.members) == 0
			r.mu.Unlock()

			if empty {
				t.mu.Lock()
				delete(t.rooms, r.name)
				t.mu.Unlock()
				close(r.events)
				return
			}

		case Text:
			for id, p := range r.snapshotMembers() {
				if id == ev.SenderID && !ev.IncludeSender {
					continue
				}
				if err := p.SendText(ev.Text); err != nil {
					t.logger.Debug("room text fan-out failed", "room", r.name, "to", id, "error", err)
				}
			}

		case Binary:
			for id, p := range r.snapshotMembers() {
				if id == ev.SenderID && !ev.IncludeSender {
					continue
				}
				if err := p.SendBinary(ev.Binary); err != nil {
					t.logger.Debug("room binary fan-out failed", "room", r.name, "to", id, "error", err)
				}
			}
		}
	}
}

// RoomCount returns the number of live rooms. Exposed for Server.Stats.
func (t *Table) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
