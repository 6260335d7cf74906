package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair upgrades one connection and returns both ends.
func wsPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()

	upgrader := ws.Upgrader{}
	serverConns := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("server connection not established")
	}
	return server, client
}

func TestWSWriter_FramesCarryEventName(t *testing.T) {
	serverConn, clientConn := wsPair(t)

	writer := NewWSWriter(serverConn, clockwork.NewRealClock())
	defer func() { _ = writer.Close() }()

	require.NoError(t, writer.WriteEvent("initial-state", []byte(`{"id":"p1"}`)))
	require.NoError(t, writer.WriteEvent("song_vote_update", []byte(`{"votes":3}`)))

	_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first, second wsFrame
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))

	_, data, err = clientConn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &second))

	assert.Equal(t, "initial-state", first.Event)
	assert.JSONEq(t, `{"id":"p1"}`, string(first.Data))
	assert.Equal(t, "song_vote_update", second.Event)
}

func TestWSWriter_CloseSendsCloseFrame(t *testing.T) {
	serverConn, clientConn := wsPair(t)

	writer := NewWSWriter(serverConn, clockwork.NewRealClock())
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close(), "close must be idempotent")

	_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := clientConn.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure))
}

func TestWSWriter_WriteAfterClose(t *testing.T) {
	serverConn, _ := wsPair(t)

	writer := NewWSWriter(serverConn, clockwork.NewRealClock())
	require.NoError(t, writer.Close())

	assert.Error(t, writer.WriteEvent("song_vote_update", []byte(`{}`)))
}
