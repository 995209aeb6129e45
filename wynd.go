// Package wynd is the user-facing assembler: the Server type stores the
// on_connection callback and server-level callbacks, owns the Registry
// and room.Table, and exposes two run modes — Listen (Owning mode,
// binds a port) and Handler (Embedded mode, an http.HandlerFunc a host
// router mounts at any path). Both modes share the same upgrade and
// Connection Runtime dispatch, so behavior is identical regardless of
// who owns the listening socket.
package wynd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"github.com/Guru901/Wynd/conn"
	"github.com/Guru901/Wynd/registry"
	"github.com/Guru901/Wynd/room"
	"github.com/Guru901/Wynd/transport"
	"github.com/Guru901/Wynd/types"
)

// Mode distinguishes whether the Server owns the TCP accept loop
// (Owning) or is invoked as an upgrade handler by an external HTTP
// router (Embedded).
type Mode int

const (
	// Owning means Server.Listen binds and accepts connections itself.
	Owning Mode = iota
	// Embedded means Server.Handler is mounted by a host HTTP router.
	Embedded
)

const defaultRoomEventChannelCapacity = 100

// Server assembles the Registry, room.Table, and callbacks that make up
// one embeddable WebSocket server, and is generic over the
// per-connection state type S. Use Server[struct{}] when no extra
// per-connection context is needed.
type Server[S any] struct {
	onConnection func(*conn.Connection[S])
	onError      func(*types.ServerError)
	onClose      func(types.ConnectionID, types.CloseEvent)

	registry *registry.Registry
	rooms    *room.Table

	roomEventChannelCapacity int
	mode                     Mode

	idAlloc *types.IDAllocator
	logger  *slog.Logger

	transportConfig transport.Config
	upgrader        websocket.Upgrader
}

// New creates a Server with no callbacks registered and the default
// room event channel capacity (100).
func New[S any]() *Server[S] {
	s := &Server[S]{
		registry:                 registry.New(),
		roomEventChannelCapacity: defaultRoomEventChannelCapacity,
		idAlloc:                  types.NewIDAllocator(),
		logger:                   slog.Default(),
		transportConfig:          transport.DefaultConfig(),
	}
	s.rooms = room.NewTable(s.roomEventChannelCapacity, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return s
}

// OnConnection stores the callback invoked once per accepted connection,
// after the WebSocket handshake has completed. Re-registration overwrites.
func (s *Server[S]) OnConnection(cb func(*conn.Connection[S])) {
	s.onConnection = cb
}

// OnError stores the server-level callback for accept-loop failures.
func (s *Server[S]) OnError(cb func(*types.ServerError)) {
	s.onError = cb
}

// OnClose stores the server-level callback invoked alongside every
// connection's own on_close.
func (s *Server[S]) OnClose(cb func(types.ConnectionID, types.CloseEvent)) {
	s.onClose = cb
}

// SetRoomEventChannelCapacity adjusts the default room channel capacity
// before Listen or Handler is first used. Rooms already created keep
// their original capacity.
func (s *Server[S]) SetRoomEventChannelCapacity(n int) {
	s.roomEventChannelCapacity = n
	s.rooms = room.NewTable(n, s.logger)
}

// SetLogger installs the *slog.Logger used for swallowed per-peer
// errors and lifecycle messages.
func (s *Server[S]) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.logger = logger
	s.rooms = room.NewTable(s.roomEventChannelCapacity, logger)
}

// SetTransportConfig overrides the read/write deadlines and max message
// size applied to accepted connections. Must be called before Listen or
// Handler is first used to take effect.
func (s *Server[S]) SetTransportConfig(cfg transport.Config) {
	s.transportConfig = cfg
}

// Stats reports the number of live rooms and registered clients.
func (s *Server[S]) Stats() (rooms, clients int) {
	return s.rooms.RoomCount(), s.registry.Count()
}

// Listen binds 0.0.0.0:port over TCP, performs the WebSocket handshake
// per accepted connection, and spawns a Connection Runtime for each.
// onListening fires exactly once after the bind succeeds.
func (s *Server[S]) Listen(ctx context.Context, port uint16, onListening func()) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return types.NewListenError("bind failed", err)
	}

	if onListening != nil {
		onListening()
	}

	s.mode = Owning
	wrapped := &errReportingListener{Listener: ln, onError: s.reportAcceptError, shutdown: ctx}

	httpServer := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	if err := httpServer.Serve(wrapped); err != nil && ctx.Err() == nil {
		return types.NewListenError("accept loop terminated", err)
	}
	return nil
}

// Handler returns an http.HandlerFunc a host router can mount at any
// path; the handler performs the upgrade itself (gorilla/websocket's
// Upgrader.Upgrade carries out the HTTP/1.1 Upgrade handshake), then
// invokes on_connection and spawns a Connection Runtime once the
// handshake has completed. The Server does not match paths or
// otherwise inspect the request beyond what the handshake requires: it
// is path-agnostic.
func (s *Server[S]) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("websocket upgrade failed", "error", err)
			return
		}

		id := s.idAlloc.Allocate()
		tr := transport.NewWSConn(wsConn, s.transportConfig)

		hooks := conn.Hooks[S]{
			OnConnection:  s.onConnection,
			OnServerClose: s.onClose,
		}

		conn.Serve[S](r.Context(), id, tr, s.registry, s.rooms, hooks, s.transportConfig.PingInterval, s.logger)
	}
}

// StartStatsHeartbeat starts a cron job (github.com/robfig/cron/v3) that
// periodically broadcasts a system status notification to every
// registered client. schedule follows cron.New(cron.WithSeconds())
// syntax, e.g. "@every 30s". Callers own the returned *cron.Cron's
// lifecycle (Stop it on shutdown).
func (s *Server[S]) StartStatsHeartbeat(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(schedule, func() {
		rooms, clients := s.Stats()
		payload := fmt.Sprintf(`{"type":"system.status","rooms":%d,"clients":%d}`, rooms, clients)
		for _, p := range s.registry.IterAll() {
			if err := p.SendText(payload); err != nil {
				s.logger.Debug("stats heartbeat send failed", "to", p.ID(), "error", err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (s *Server[S]) reportAcceptError(err error) {
	if s.onError != nil {
		s.onError(types.NewServerError("accept failed", err))
	} else {
		s.logger.Error("accept failed", "error", err)
	}
}

// errReportingListener wraps a net.Listener so every failed Accept is
// reported to the Server's on_error callback, while still letting
// net/http's own Serve loop apply its standard retry/backoff behavior
// for transient errors. The one failure it does not report is the
// "use of closed network connection" Accept returns once shutdown has
// already closed the listener out from under it — that failure is the
// expected tail end of a requested shutdown, not something on_error
// should treat as an operational problem.
type errReportingListener struct {
	net.Listener
	onError  func(error)
	shutdown context.Context
}

func (l *errReportingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil && l.shutdown.Err() == nil {
		l.onError(err)
	}
	return c, err
}
