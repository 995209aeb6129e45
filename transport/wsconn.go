package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Config tunes the read/write deadlines and frame size limit applied to
// a WSConn as per-server settings, since a library cannot assume every
// embedder wants the same timeouts.
type Config struct {
	// ReadDeadline bounds how long reads may go on after NewWSConn or
	// after the most recent Pong; it is refreshed on every Pong, not on
	// every frame.
	ReadDeadline time.Duration
	// WriteDeadline bounds how long Send waits to flush one frame.
	WriteDeadline time.Duration
	// MaxMessageSize caps the size of a single inbound frame.
	MaxMessageSize int64
	// PingInterval is how often the Connection Runtime sends an
	// unsolicited Ping to keep an otherwise idle connection from hitting
	// ReadDeadline. Zero disables server-initiated pings.
	PingInterval time.Duration
}

// DefaultConfig returns a 60s read deadline, 10s write deadline, a
// 1 MiB max message size, and a ping every 54s (nine tenths of the read
// deadline, so a healthy peer's pong always lands before the deadline
// would otherwise expire).
func DefaultConfig() Config {
	return Config{
		ReadDeadline:   60 * time.Second,
		WriteDeadline:  10 * time.Second,
		MaxMessageSize: 1 << 20,
		PingInterval:   54 * time.Second,
	}
}

// WSConn adapts a *websocket.Conn to the Conn interface.
type WSConn struct {
	ws  *websocket.Conn
	cfg Config
}

// NewWSConn wraps ws, applying cfg's read limit and initial read
// deadline, and installs a pong handler that refreshes the read
// deadline so an idle-but-alive connection is not dropped. No ping
// handler is installed: gorilla/websocket's default ping handler
// already replies with a Pong on the connection's behalf, so an
// incoming Ping never needs to surface above this layer.
func NewWSConn(ws *websocket.Conn, cfg Config) *WSConn {
	ws.SetReadLimit(cfg.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(cfg.ReadDeadline))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(cfg.ReadDeadline))
		return nil
	})
	return &WSConn{ws: ws, cfg: cfg}
}

// Recv blocks for and decodes the next inbound frame. ctx is accepted
// for interface symmetry with Send; gorilla/websocket's ReadMessage has
// no native context support, so cancellation relies on the read
// deadline installed by NewWSConn and refreshed on every Pong.
//
// ReadMessage only ever returns TextMessage or BinaryMessage as its
// kind: Ping and Pong frames are consumed internally by the handlers
// installed above, and a peer Close frame is reported as an error
// wrapping *websocket.CloseError rather than as a message. That close
// error is unwrapped here and turned back into an ordinary KindClose
// Message so the frame loop sees a peer-initiated close the same way
// it sees any other delivered frame, not as a transport failure.
func (c *WSConn) Recv(ctx context.Context) (Message, error) {
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			// closeErr.Code is already websocket.CloseNoStatusReceived
			// (RFC 6455's 1005) when the peer sent a Close frame with no
			// status code at all, so no further defaulting is needed here.
			return Message{Kind: KindClose, CloseCode: uint16(closeErr.Code), CloseReason: closeErr.Text}, nil
		}
		return Message{}, err
	}

	switch kind {
	case websocket.TextMessage:
		return Message{Kind: KindText, Text: string(data)}, nil
	case websocket.BinaryMessage:
		return Message{Kind: KindBinary, Binary: data}, nil
	default:
		return Message{}, fmt.Errorf("transport: unsupported frame kind %d", kind)
	}
}

// Send encodes and writes one outbound frame.
func (c *WSConn) Send(ctx context.Context, msg Message) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteDeadline))

	switch msg.Kind {
	case KindText:
		return c.ws.WriteMessage(websocket.TextMessage, []byte(msg.Text))
	case KindBinary:
		return c.ws.WriteMessage(websocket.BinaryMessage, msg.Binary)
	case KindPing:
		return c.ws.WriteMessage(websocket.PingMessage, msg.Binary)
	case KindPong:
		return c.ws.WriteMessage(websocket.PongMessage, msg.Binary)
	case KindClose:
		frame := websocket.FormatCloseMessage(int(msg.CloseCode), msg.CloseReason)
		return c.ws.WriteMessage(websocket.CloseMessage, frame)
	default:
		return fmt.Errorf("transport: unsupported frame kind %d", msg.Kind)
	}
}

// Addr returns the peer's remote address in text form.
func (c *WSConn) Addr() string {
	return c.ws.RemoteAddr().String()
}

// Close closes the underlying TCP connection without a close handshake.
func (c *WSConn) Close() error {
	return c.ws.Close()
}
