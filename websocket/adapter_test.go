package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyestevam/collaborative-whiteboard/domain"
	"github.com/andreyestevam/collaborative-whiteboard/hub"
	"github.com/andreyestevam/collaborative-whiteboard/protocol"
)

const circlePayload = `{"id":"op-1","type":"draw","shape":"circle","color":"#00ff00","start":[10,10],"end":[20,20],"radius":5}`

func startServer(t *testing.T, opts Options) (*hub.Hub, string) {
	t.Helper()
	h := hub.New(nil)
	handler := protocol.NewHandler(h, nil)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go NewConn(uuid.New().String(), r.URL.Query().Get("username"), conn, opts).Run(handler)
	}))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, username string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url+"?username="+username, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestConn_RelayAndDeparture(t *testing.T) {
	h, url := startServer(t, DefaultOptions())

	alice := dial(t, url, "Alice")
	require.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	bob := dial(t, url, "Bob")

	assert.Equal(t, "User Bob has joined the room.", readText(t, alice))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(circlePayload)))
	assert.Equal(t, circlePayload, readText(t, bob))

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, alice.WriteMessage(websocket.CloseMessage, msg))
	assert.Equal(t, "User Alice has left the room.", readText(t, bob))
	require.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestConn_AbruptDisconnectAnnouncesError(t *testing.T) {
	h, url := startServer(t, DefaultOptions())

	carol := dial(t, url, "Carol")
	require.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	dave := dial(t, url, "")
	assert.Equal(t, "User Unknown User has joined the room.", readText(t, carol))

	require.NoError(t, dave.UnderlyingConn().Close())

	assert.Equal(t, "User Unknown User has left the room due to an error.", readText(t, carol))
	require.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestConn_SendAfterClose(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- NewConn("id", "", conn, DefaultOptions())
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer peer.Close()

	c := <-serverSide
	assert.True(t, c.IsOpen())
	c.Close(domain.CloseNormal)
	assert.False(t, c.IsOpen())
	assert.ErrorIs(t, c.Send([]byte("late")), domain.ErrConnectionClosed)
	assert.NoError(t, c.Close(domain.CloseServerError))
}

func TestConn_SendBufferFull(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	opts := DefaultOptions()
	opts.SendBuffer = 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- NewConn("id", "", conn, opts)
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer peer.Close()

	c := <-serverSide
	require.NoError(t, c.Send([]byte("first")))
	assert.ErrorIs(t, c.Send([]byte("second")), domain.ErrSendBufferFull)
	require.Eventually(t, func() bool { return !c.IsOpen() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = peer.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}

func TestConn_WriteErrorClosesImmediately(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- NewConn("id", "", conn, DefaultOptions())
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer peer.Close()

	c := <-serverSide
	go c.writePump()
	require.NoError(t, c.ws.UnderlyingConn().Close())

	require.NoError(t, c.Send([]byte("lost")))
	require.Eventually(t, func() bool { return !c.IsOpen() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.broken.Load())
	assert.ErrorIs(t, c.Send([]byte("late")), domain.ErrConnectionClosed)
}
