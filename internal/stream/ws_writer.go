package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// wsFrame is the shape of every message pushed over WebSocket. SSE carries
// the event name natively; WebSocket clients get it in the frame.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSWriter pushes events over a WebSocket connection. Writes go through a
// buffered channel drained by a single goroutine that also keeps the
// connection alive with pings; a full buffer means the client cannot keep
// up and surfaces as a write error so the session closes.
type WSWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewWSWriter(connection *websocket.Conn, clock clockwork.Clock) *WSWriter {
	w := &WSWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	w.configurePongHandler()
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *WSWriter) WriteEvent(name string, data []byte) error {
	frame, err := json.Marshal(wsFrame{Event: name, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal ws frame: %w", err)
	}

	select {
	case w.sendChannel <- frame:
		return nil
	case <-w.doneChannel:
		return fmt.Errorf("websocket writer closed")
	default:
		return fmt.Errorf("websocket send buffer full, client too slow")
	}
}

func (w *WSWriter) run() {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer w.wg.Done()

	for {
		select {
		case msg := <-w.sendChannel:
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

// Close sends a close frame and closes the connection. Idempotent.
func (w *WSWriter) Close() error {
	w.stopOnce.Do(func() {
		// Signal the run goroutine to exit and wait for it before writing
		// the close frame, so the connection never sees concurrent writes.
		close(w.doneChannel)
		w.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		w.updateWriteDeadline()
		_ = w.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = w.connection.Close()
	})
	return nil
}

func (w *WSWriter) configurePongHandler() {
	w.updateReadDeadline()
	w.connection.SetPongHandler(func(string) error {
		w.updateReadDeadline()
		return nil
	})
}

func (w *WSWriter) updateWriteDeadline() {
	_ = w.connection.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}

func (w *WSWriter) updateReadDeadline() {
	_ = w.connection.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}
