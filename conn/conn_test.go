package conn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guru901/Wynd/handle"
	"github.com/Guru901/Wynd/registry"
	"github.com/Guru901/Wynd/room"
	"github.com/Guru901/Wynd/transport"
	"github.com/Guru901/Wynd/types"
)

type scriptedConn struct {
	mu       sync.Mutex
	inbound  []transport.Message
	recvErr  error
	sent     []transport.Message
	addr     string
}

func (c *scriptedConn) Recv(ctx context.Context) (transport.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		if c.recvErr != nil {
			return transport.Message{}, c.recvErr
		}
		return transport.Message{}, errors.New("no more scripted messages")
	}
	msg := c.inbound[0]
	c.inbound = c.inbound[1:]
	return msg, nil
}

func (c *scriptedConn) Send(ctx context.Context, msg transport.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *scriptedConn) Addr() string { return c.addr }
func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) sentMessages() []transport.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transport.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func TestServe_OpenTextCloseLifecycle(t *testing.T) {
	tr := &scriptedConn{
		addr: "127.0.0.1:1",
		inbound: []transport.Message{
			{Kind: transport.KindText, Text: "hello"},
			{Kind: transport.KindClose, CloseCode: types.CloseNormal},
		},
	}

	reg := registry.New()
	rooms := room.NewTable(8, nil)

	var opened, closed bool
	var receivedText string
	var closeEvt types.CloseEvent

	hooks := Hooks[struct{}]{
		OnConnection: func(c *Connection[struct{}]) {
			c.OnOpen(func(h *handle.Handle[struct{}]) { opened = true })
			c.OnText(func(msg types.TextMessage, h *handle.Handle[struct{}]) {
				receivedText = msg.Data
			})
			c.OnClose(func(evt types.CloseEvent) {
				closed = true
				closeEvt = evt
			})
		},
	}

	Serve[struct{}](context.Background(), 1, tr, reg, rooms, hooks, 0, nil)

	assert.True(t, opened)
	assert.Equal(t, "hello", receivedText)
	assert.True(t, closed)
	assert.Equal(t, types.CloseNormal, closeEvt.Code)

	_, found := reg.Get(1)
	assert.False(t, found, "connection should be deregistered after Serve returns")

	sent := tr.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, transport.KindClose, sent[0].Kind)
}

func TestServe_RecvErrorReportsAbnormalClose(t *testing.T) {
	tr := &scriptedConn{addr: "a", recvErr: errors.New("connection reset")}
	reg := registry.New()
	rooms := room.NewTable(8, nil)

	var errMsg string
	var closeEvt types.CloseEvent

	hooks := Hooks[struct{}]{
		OnConnection: func(c *Connection[struct{}]) {
			c.OnError(func(evt types.ErrorEvent) { errMsg = evt.Message })
			c.OnClose(func(evt types.CloseEvent) { closeEvt = evt })
		},
	}

	Serve[struct{}](context.Background(), 1, tr, reg, rooms, hooks, 0, nil)

	assert.Equal(t, "connection reset", errMsg)
	assert.Equal(t, types.CloseAbnormal, closeEvt.Code)
}

func TestServe_ServerCloseHookFiresWithConnectionID(t *testing.T) {
	tr := &scriptedConn{
		addr:    "a",
		inbound: []transport.Message{{Kind: transport.KindClose, CloseCode: types.CloseNormal}},
	}
	reg := registry.New()
	rooms := room.NewTable(8, nil)

	var gotID types.ConnectionID
	hooks := Hooks[struct{}]{
		OnServerClose: func(id types.ConnectionID, evt types.CloseEvent) { gotID = id },
	}

	Serve[struct{}](context.Background(), 42, tr, reg, rooms, hooks, 0, nil)

	assert.Equal(t, types.ConnectionID(42), gotID)
}

func TestServe_ReturnsWithKeepaliveEnabled(t *testing.T) {
	tr := &scriptedConn{
		addr:    "a",
		inbound: []transport.Message{{Kind: transport.KindClose, CloseCode: types.CloseNormal}},
	}
	reg := registry.New()
	rooms := room.NewTable(8, nil)

	done := make(chan struct{})
	go func() {
		Serve[struct{}](context.Background(), 1, tr, reg, rooms, Hooks[struct{}]{}, 5*time.Millisecond, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}
