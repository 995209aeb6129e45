package wynd

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guru901/Wynd/conn"
	"github.com/Guru901/Wynd/handle"
	"github.com/Guru901/Wynd/types"
)

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + ts.URL[len("http"):] + "/"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestServer_EchoesTextBackToSender(t *testing.T) {
	srv := New[struct{}]()
	srv.OnConnection(func(c *conn.Connection[struct{}]) {
		c.OnText(func(msg types.TextMessage, h *handle.Handle[struct{}]) {
			_ = h.SendText("echo:" + msg.Data)
		})
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialTestServer(t, ts)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hi")))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "echo:hi", string(data))
}

func TestServer_BroadcastFanOutExcludesSender(t *testing.T) {
	srv := New[struct{}]()
	srv.OnConnection(func(c *conn.Connection[struct{}]) {
		c.OnText(func(msg types.TextMessage, h *handle.Handle[struct{}]) {
			h.Broadcast.Text(msg.Data)
		})
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	sender := dialTestServer(t, ts)
	receiver := dialTestServer(t, ts)

	require.Eventually(t, func() bool { return srv.registry.Count() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("broadcast-me")))

	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := receiver.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "broadcast-me", string(data))

	sender.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = sender.ReadMessage()
	assert.Error(t, err, "sender should not receive its own broadcast")
}

func TestServer_PeerInitiatedCloseReachesOnClose(t *testing.T) {
	srv := New[struct{}]()

	closed := make(chan types.CloseEvent, 1)
	srv.OnClose(func(id types.ConnectionID, evt types.CloseEvent) {
		closed <- evt
	})

	var sawError bool
	srv.OnConnection(func(c *conn.Connection[struct{}]) {
		c.OnError(func(types.ErrorEvent) { sawError = true })
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialTestServer(t, ts)
	require.NoError(t, ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(time.Second)))

	select {
	case evt := <-closed:
		assert.Equal(t, uint16(websocket.CloseNormalClosure), evt.Code)
		assert.Equal(t, "done", evt.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("on_close was not invoked")
	}
	assert.False(t, sawError, "a clean peer close must not report on_error")
}

func TestServer_StatsReflectsRegisteredClients(t *testing.T) {
	srv := New[struct{}]()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	rooms, clients := srv.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, clients)

	dialTestServer(t, ts)

	require.Eventually(t, func() bool {
		_, c := srv.Stats()
		return c == 1
	}, time.Second, 5*time.Millisecond)
}
