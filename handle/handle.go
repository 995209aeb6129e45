// Package handle implements the user-callable surface passed to every
// connection callback: Handle[S] wraps the guarded send half of one
// connection and carries references into the shared Registry and Room
// Table. It is deliberately generic only at the Handle/Broadcast-facade
// boundary: Handle[S] exposes State() for the caller's per-connection
// state type S, but satisfies the generic-free registry.Peer interface
// so the Registry and room.Table it is stored in never need to know S.
package handle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Guru901/Wynd/registry"
	"github.com/Guru901/Wynd/room"
	"github.com/Guru901/Wynd/transport"
	"github.com/Guru901/Wynd/types"
)

// Handle is the cheaply shareable façade given to every connection
// callback. It is never copied by value: Go reference semantics mean
// passing the pointer already gives every callback access to the same
// underlying connection state, so every callback simply receives the
// same *Handle[S].
type Handle[S any] struct {
	id   types.ConnectionID
	addr string

	// sendMu guards the single writer discipline a WebSocket connection
	// requires: the Runtime writes control frames (keepalive pings, the
	// close echo) and every Handle send writes user frames through the
	// same mutex, so they are never interleaved mid-frame.
	sendMu sync.Mutex
	tr     transport.Conn
	state  atomic.Int32 // types.ConnState

	userState *S

	registry *registry.Registry
	rooms    *room.Table

	// Broadcast is the sub-object reachable as Handle.Broadcast.
	Broadcast *Broadcast
}

// New constructs a Handle bound to one connection's transport, shared
// Registry, and shared room.Table. userState is a pointer into the
// owning Connection[S]'s State field so reads via Handle.State reflect
// the live value a callback may have just mutated.
func New[S any](
	id types.ConnectionID,
	addr string,
	tr transport.Conn,
	reg *registry.Registry,
	rooms *room.Table,
	userState *S,
	logger *slog.Logger,
) *Handle[S] {
	h := &Handle[S]{
		id:        id,
		addr:      addr,
		tr:        tr,
		userState: userState,
		registry:  reg,
		rooms:     rooms,
	}
	h.state.Store(int32(types.Connecting))
	h.Broadcast = newBroadcast(id, reg, rooms, logger)
	return h
}

// ID returns the connection id, equal to the owning Connection's id.
func (h *Handle[S]) ID() types.ConnectionID { return h.id }

// Addr returns the peer socket address in text form.
func (h *Handle[S]) Addr() string { return h.addr }

// State returns a pointer to the per-connection user state. Mutation is
// only ever safe from this connection's own callbacks, since they run
// sequentially on one goroutine; a Handle shared with another
// connection's callbacks must not mutate this state concurrently unless
// S itself is safe for that.
func (h *Handle[S]) State() *S { return h.userState }

// ConnState reports the connection's lifecycle state.
func (h *Handle[S]) ConnState() types.ConnState {
	return types.ConnState(h.state.Load())
}

// MarkOpen is called by the Runtime once the frame loop is about to
// start, after on_open has completed.
func (h *Handle[S]) MarkOpen() { h.state.Store(int32(types.Open)) }

// MarkClosed is called by the Runtime on termination.
func (h *Handle[S]) MarkClosed() { h.state.Store(int32(types.Closed)) }

// sendRaw is the single guarded write path used by every other send on
// Handle and by the Runtime for control frames (keepalive pings, the
// close echo). It never holds sendMu across anything but the transport
// write itself.
func (h *Handle[S]) sendRaw(msg transport.Message) error {
	if types.ConnState(h.state.Load()) == types.Closed {
		return types.NewSendError(types.ConnectionClosed, nil)
	}
	h.sendMu.Lock()
	err := h.tr.Send(context.Background(), msg)
	h.sendMu.Unlock()
	if err != nil {
		return types.NewSendError(types.IoFailure, err)
	}
	return nil
}

// SendRaw exposes the guarded write path to the Connection Runtime for
// control frames it must send outside of user callbacks (keepalive
// pings and the close echo). It is not meant to be called from user
// code, but must live on Handle so the Runtime and Handle share one
// mutex.
func (h *Handle[S]) SendRaw(msg transport.Message) error { return h.sendRaw(msg) }

// SendText sends a text frame.
func (h *Handle[S]) SendText(text string) error {
	return h.sendRaw(transport.Message{Kind: transport.KindText, Text: text})
}

// SendBinary sends a binary frame.
func (h *Handle[S]) SendBinary(data []byte) error {
	return h.sendRaw(transport.Message{Kind: transport.KindBinary, Binary: data})
}

// Close sends a close frame with the given code and reason. After this
// call, subsequent sends fail with ErrConnectionClosed. Calling Close
// more than once is safe; later calls simply resend the close frame.
func (h *Handle[S]) Close(code uint16, reason string) error {
	h.state.Store(int32(types.Closing))
	err := h.sendRaw(transport.Message{Kind: transport.KindClose, CloseCode: code, CloseReason: reason})
	h.state.Store(int32(types.Closed))
	return err
}

// CloseDefault closes with the normal-closure code (1000) and an empty
// reason, for callers that don't need to specify either.
func (h *Handle[S]) CloseDefault() error {
	return h.Close(types.CloseNormal, "")
}

// Join enqueues a Join event for room, creating it on first reference.
func (h *Handle[S]) Join(name types.RoomName) {
	h.rooms.Join(name, h.id, h)
}

// Leave enqueues a Leave event for room.
func (h *Handle[S]) Leave(name types.RoomName) {
	h.rooms.Leave(name, h.id)
}

// JoinedRooms returns a snapshot of the rooms this connection currently
// belongs to, served by querying the room.Table directly.
func (h *Handle[S]) JoinedRooms() []types.RoomName {
	return h.rooms.JoinedRooms(h.id)
}

// LeaveAllRooms leaves every room this connection currently belongs to.
func (h *Handle[S]) LeaveAllRooms() {
	for _, name := range h.JoinedRooms() {
		h.Leave(name)
	}
}

// To returns a RoomMethods bound to room, letting a caller send
// messages to it without going through the Broadcast facade.
func (h *Handle[S]) To(name types.RoomName) *RoomMethods {
	return &RoomMethods{name: name, selfID: h.id, rooms: h.rooms}
}
