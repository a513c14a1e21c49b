package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSBus is a Bus backed by a websocket connection to a Hub. Outgoing posts
// are serialized through a single writer goroutine; incoming frames are
// decoded and dispatched to attached handlers from the read loop.
type WSBus struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.Mutex
	handlers map[int]func(Message)
	nextID   int
	closed   bool
}

// DialBus connects to a Hub at url (ws:// or wss://) and starts the read and
// write loops.
func DialBus(url string) (*WSBus, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial message bus %s: %w", url, err)
	}
	b := &WSBus{
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		handlers: make(map[int]func(Message)),
	}
	go b.readPump()
	go b.writePump()
	return b, nil
}

// Close tears the connection down. Posting after Close returns an error.
func (b *WSBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	close(b.done)
	return b.conn.Close()
}

func (b *WSBus) Attach(fn func(Message)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *WSBus) Post(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %q: %w", msg.Type, err)
	}
	select {
	case b.send <- data:
		return nil
	case <-b.done:
		return fmt.Errorf("message bus closed")
	}
}

func (b *WSBus) readPump() {
	defer b.Close()
	b.conn.SetReadLimit(maxMessageSize)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPingHandler(func(appData string) error {
		_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
		return b.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("message bus read failed", slog.Any("err", err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("message bus received malformed frame", slog.Any("err", err))
			continue
		}
		b.dispatch(msg)
	}
}

func (b *WSBus) dispatch(msg Message) {
	b.mu.Lock()
	fns := make([]func(Message), 0, len(b.handlers))
	for _, fn := range b.handlers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (b *WSBus) writePump() {
	for {
		select {
		case data := <-b.send:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("message bus write failed", slog.Any("err", err))
				_ = b.Close()
				return
			}
		case <-b.done:
			return
		}
	}
}
