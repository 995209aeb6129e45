// Package types holds the data model shared by every wynd package:
// connection ids, message/event payloads, and the id allocator. Keeping
// these free of behavior (no locks, no goroutines) is what lets registry
// and room stay generic-free while handle and conn carry the user state
// type parameter.
package types

import "sync/atomic"

// ConnectionID uniquely identifies a connection for the lifetime of the
// process. Ids are issued by IDAllocator and are never reused.
type ConnectionID uint64

// IDAllocator issues process-monotonic connection ids, seeded at 1.
type IDAllocator struct {
	counter atomic.Uint64
}

// NewIDAllocator returns an allocator whose first Allocate call yields 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Allocate returns the next unused ConnectionID.
func (a *IDAllocator) Allocate() ConnectionID {
	return ConnectionID(a.counter.Add(1))
}

// RoomName identifies a room. Rooms are created on first reference and
// removed once their membership returns to zero.
type RoomName string

// TextMessage is a UTF-8 payload delivered from a peer or queued for
// delivery to one.
type TextMessage struct {
	Data string
}

// BinaryMessage is an arbitrary byte payload delivered from a peer or
// queued for delivery to one.
type BinaryMessage struct {
	Data []byte
}

// CloseEvent describes why a connection ended, peer-facing code and
// reason per RFC 6455.
type CloseEvent struct {
	Code   uint16
	Reason string
}

// ErrorEvent carries a human-readable description of a transport or
// protocol failure surfaced to the on_error callback.
type ErrorEvent struct {
	Message string
}

// Well-known close codes, per RFC 6455.
const (
	CloseNormal        uint16 = 1000
	CloseProtocolError uint16 = 1002
	CloseAbnormal      uint16 = 1006
	CloseNoStatusCode  uint16 = 1005
)

// ConnState is the lifecycle of a connection as observed through its
// Handle.
type ConnState int32

const (
	// Connecting is the window between accept and on_open returning.
	Connecting ConnState = iota
	// Open is the steady state during which the frame loop runs.
	Open
	// Closing means a local Close() is writing its close frame.
	Closing
	// Closed means a local Close() has written its close frame, or the
	// Runtime has terminated and removed the id from the Registry. Sends
	// fail from here on.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
