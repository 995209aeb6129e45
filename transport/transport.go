// Package transport is a codec adapter: a thin interface around a typed
// message stream that the rest of the module is built against. The
// only implementation shipped here is backed by github.com/gorilla/websocket,
// but conn.Serve never imports gorilla/websocket directly — it only
// knows about the Conn interface below, so an embedder could swap in
// another RFC 6455 implementation without touching conn, handle, or
// room.
package transport

import "context"

// Kind tags the variant of a Message.
type Kind int

const (
	// KindText is a UTF-8 text frame.
	KindText Kind = iota
	// KindBinary is an arbitrary byte frame.
	KindBinary
	// KindPing requests a Pong from the peer. WSConn's Recv never
	// returns an inbound KindPing: gorilla/websocket answers incoming
	// Pings on its own, below this layer. This Kind only appears on the
	// Send side, where the Runtime's keepalive ticker uses it.
	KindPing
	// KindPong replies to a Ping. Like KindPing, WSConn's Recv never
	// surfaces an inbound one; gorilla's Pong handler (installed by
	// NewWSConn) consumes it directly to refresh the read deadline.
	KindPong
	// KindClose is a close frame, optionally carrying a code and reason.
	KindClose
)

// Message is the symmetric type used for both inbound (Recv) and
// outbound (Send) frames.
type Message struct {
	Kind        Kind
	Text        string
	Binary      []byte
	CloseCode   uint16
	CloseReason string
}

// Conn is the bidirectional typed message stream the Connection Runtime
// is built against. Graceful: after Send of a KindClose message, the
// codec is expected to reject further Sends.
type Conn interface {
	// Recv blocks for the next inbound message.
	Recv(ctx context.Context) (Message, error)
	// Send writes one outbound message.
	Send(ctx context.Context, msg Message) error
	// Addr returns the peer address in socket address text form.
	Addr() string
	// Close closes the underlying stream without the close handshake.
	// conn.Serve does not call it.
	Close() error
}
