// Package conn is the Connection Runtime: the per-connection task that
// owns one accepted transport.Conn after a successful handshake, runs
// the frame loop, and dispatches to user callbacks in arrival order.
// Writes go through handle.Handle's own mutex-guarded send path rather
// than a second, independent write path, so Runtime control frames
// (keepalive pings, the close echo) can never interleave with a user
// send mid-frame.
package conn

import (
	"context"
	"log/slog"
	"time"

	"github.com/Guru901/Wynd/handle"
	"github.com/Guru901/Wynd/registry"
	"github.com/Guru901/Wynd/room"
	"github.com/Guru901/Wynd/transport"
	"github.com/Guru901/Wynd/types"
)

// Connection is the user-facing callback target constructed once per
// accepted connection. It is generic over the per-connection state
// type S (default unit via Connection[struct{}]).
type Connection[S any] struct {
	id    types.ConnectionID
	addr  string
	State S

	onOpen   func(*handle.Handle[S])
	onText   func(types.TextMessage, *handle.Handle[S])
	onBinary func(types.BinaryMessage, *handle.Handle[S])
	onClose  func(types.CloseEvent)
	onError  func(types.ErrorEvent)
}

// New constructs a Connection with empty callback slots and the zero
// value of S as its initial state.
func New[S any](id types.ConnectionID, addr string) *Connection[S] {
	return &Connection[S]{id: id, addr: addr}
}

// ID returns this connection's id.
func (c *Connection[S]) ID() types.ConnectionID { return c.id }

// Addr returns the peer's socket address in text form.
func (c *Connection[S]) Addr() string { return c.addr }

// OnOpen registers the callback invoked once the Handle is bound and
// registered, before the frame loop starts.
func (c *Connection[S]) OnOpen(cb func(*handle.Handle[S])) { c.onOpen = cb }

// OnText registers the callback invoked for each inbound text frame.
func (c *Connection[S]) OnText(cb func(types.TextMessage, *handle.Handle[S])) { c.onText = cb }

// OnBinary registers the callback invoked for each inbound binary frame.
func (c *Connection[S]) OnBinary(cb func(types.BinaryMessage, *handle.Handle[S])) { c.onBinary = cb }

// OnClose registers the callback invoked once, on termination.
func (c *Connection[S]) OnClose(cb func(types.CloseEvent)) { c.onClose = cb }

// OnError registers the callback invoked on transport/protocol failure.
func (c *Connection[S]) OnError(cb func(types.ErrorEvent)) { c.onError = cb }

// Hooks bundles the server-level callbacks Serve reports into, kept
// separate from Connection's per-connection slots since they are set
// once on the Server rather than per connection.
type Hooks[S any] struct {
	OnConnection  func(*Connection[S])
	OnServerClose func(types.ConnectionID, types.CloseEvent)
}

// Serve runs the full connection lifecycle: construct Connection
// (id is already assigned by the caller), invoke on_connection, bind
// the Handle, register it, invoke on_open, then loop reading frames
// until Close or I/O failure. It returns once the connection has fully
// terminated and been deregistered.
func Serve[S any](
	ctx context.Context,
	id types.ConnectionID,
	tr transport.Conn,
	reg *registry.Registry,
	rooms *room.Table,
	hooks Hooks[S],
	pingInterval time.Duration,
	logger *slog.Logger,
) {
	if logger == nil {
		logger = slog.Default()
	}

	c := New[S](id, tr.Addr())
	if hooks.OnConnection != nil {
		hooks.OnConnection(c)
	}

	h := handle.New[S](id, c.addr, tr, reg, rooms, &c.State, logger)
	reg.Register(id, h)

	if c.onOpen != nil {
		c.onOpen(h)
	}
	h.MarkOpen()

	done := make(chan struct{})
	if pingInterval > 0 {
		go keepalive(h, pingInterval, done, logger)
	}

	closeEvt, _ := frameLoop(ctx, c, h, tr)
	close(done)

	// on_close (if not already invoked inside frameLoop) fires before
	// Registry/Room cleanup, so callbacks still observe the connection
	// as registered and a room member while handling termination.
	if c.onClose != nil {
		c.onClose(closeEvt)
	}
	if hooks.OnServerClose != nil {
		hooks.OnServerClose(id, closeEvt)
	}

	reg.Remove(id)
	h.LeaveAllRooms()
	h.MarkClosed()
}

// keepalive sends an unsolicited Ping on every tick until done is
// closed, so a connection that is open but otherwise silent does not
// trip its own read deadline. A failed send means the connection is
// already gone; frameLoop's own Recv will observe that and exit,
// closing done.
func keepalive[S any](h *handle.Handle[S], interval time.Duration, done <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.SendRaw(transport.Message{Kind: transport.KindPing}); err != nil {
				logger.Debug("keepalive ping failed", "conn", h.ID(), "error", err)
			}
		}
	}
}

// frameLoop awaits the next inbound message and dispatches by kind,
// sequentially, until a Close frame or a transport error ends the
// connection.
func frameLoop[S any](ctx context.Context, c *Connection[S], h *handle.Handle[S], tr transport.Conn) (types.CloseEvent, bool) {
	closeSent := false

	for {
		msg, err := tr.Recv(ctx)
		if err != nil {
			evt := types.ErrorEvent{Message: err.Error()}
			if c.onError != nil {
				c.onError(evt)
			}
			_ = h.SendRaw(transport.Message{Kind: transport.KindClose, CloseCode: types.CloseAbnormal})
			return types.CloseEvent{Code: types.CloseAbnormal, Reason: ""}, true
		}

		switch msg.Kind {
		case transport.KindText:
			if c.onText != nil {
				c.onText(types.TextMessage{Data: msg.Text}, h)
			}

		case transport.KindBinary:
			if c.onBinary != nil {
				c.onBinary(types.BinaryMessage{Data: msg.Binary}, h)
			}

		case transport.KindClose:
			code := msg.CloseCode
			if code == 0 {
				code = types.CloseNoStatusCode
			}
			evt := types.CloseEvent{Code: code, Reason: msg.CloseReason}
			if c.onClose != nil {
				c.onClose(evt)
				// onClose is invoked exactly once overall; suppress the
				// caller-side invocation in Serve by clearing the slot.
				c.onClose = nil
			}
			if !closeSent {
				_ = h.SendRaw(transport.Message{Kind: transport.KindClose, CloseCode: types.CloseNormal})
				closeSent = true
			}
			return evt, false
		}
	}
}
