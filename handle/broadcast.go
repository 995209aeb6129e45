package handle

import (
	"log/slog"

	"github.com/Guru901/Wynd/registry"
	"github.com/Guru901/Wynd/room"
	"github.com/Guru901/Wynd/types"
)

// Broadcast is the sub-object reachable as Handle.Broadcast. Its methods
// are convenience wrappers over Registry and room iteration; per-peer
// send failures are logged and swallowed so a broadcast never fails as
// a whole.
type Broadcast struct {
	selfID   types.ConnectionID
	registry *registry.Registry
	rooms    *room.Table
	logger   *slog.Logger
}

func newBroadcast(selfID types.ConnectionID, reg *registry.Registry, rooms *room.Table, logger *slog.Logger) *Broadcast {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcast{selfID: selfID, registry: reg, rooms: rooms, logger: logger}
}

// Text sends text to every registered client except the sender.
func (b *Broadcast) Text(text string) {
	for _, p := range b.registry.IterExcept(b.selfID) {
		if err := p.SendText(text); err != nil {
			b.logger.Debug("broadcast text failed", "to", p.ID(), "error", err)
		}
	}
}

// EmitText sends text to every registered client, including the sender.
func (b *Broadcast) EmitText(text string) {
	for _, p := range b.registry.IterAll() {
		if err := p.SendText(text); err != nil {
			b.logger.Debug("broadcast emit_text failed", "to", p.ID(), "error", err)
		}
	}
}

// Binary sends binary data to every registered client except the sender.
func (b *Broadcast) Binary(data []byte) {
	for _, p := range b.registry.IterExcept(b.selfID) {
		if err := p.SendBinary(data); err != nil {
			b.logger.Debug("broadcast binary failed", "to", p.ID(), "error", err)
		}
	}
}

// EmitBinary sends binary data to every registered client, including the
// sender.
func (b *Broadcast) EmitBinary(data []byte) {
	for _, p := range b.registry.IterAll() {
		if err := p.SendBinary(data); err != nil {
			b.logger.Debug("broadcast emit_binary failed", "to", p.ID(), "error", err)
		}
	}
}

// Room returns a RoomMethods bound to name for room-scoped broadcasts.
func (b *Broadcast) Room(name types.RoomName) *RoomMethods {
	return &RoomMethods{name: name, selfID: b.selfID, rooms: b.rooms}
}

// RoomMethods sends text or binary messages to a specific room. It is
// obtained from Broadcast.Room or Handle.To, which behave the same:
// Text and Binary exclude the sender, EmitText and EmitBinary include it.
type RoomMethods struct {
	name   types.RoomName
	selfID types.ConnectionID
	rooms  *room.Table
}

// Text enqueues a text fan-out event excluding the sender.
func (r *RoomMethods) Text(data string) {
	r.rooms.Text(r.name, r.selfID, data, false)
}

// Binary enqueues a binary fan-out event excluding the sender.
func (r *RoomMethods) Binary(data []byte) {
	r.rooms.Binary(r.name, r.selfID, data, false)
}

// EmitText enqueues a text fan-out event including the sender.
func (r *RoomMethods) EmitText(data string) {
	r.rooms.Text(r.name, r.selfID, data, true)
}

// EmitBinary enqueues a binary fan-out event including the sender.
func (r *RoomMethods) EmitBinary(data []byte) {
	r.rooms.Binary(r.name, r.selfID, data, true)
}
