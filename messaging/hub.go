package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fractalo/chat-curator/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub is the websocket relay for split-process deployments. Every frame
// received from one connection is forwarded verbatim to all other
// connections, so attached endpoints observe the same broadcast semantics as
// on a LocalBus.
type Hub struct {
	clients    map[*hubClient]struct{}
	broadcast  chan hubFrame
	register   chan *hubClient
	unregister chan *hubClient
}

type hubFrame struct {
	sender *hubClient
	data   []byte
}

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a relay with no connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*hubClient]struct{}),
		broadcast:  make(chan hubFrame),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				telemetry.AddConnectedPeer(-1)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			telemetry.AddConnectedPeer(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				telemetry.AddConnectedPeer(-1)
			}
		case frame := <-h.broadcast:
			for client := range h.clients {
				if client == frame.sender {
					continue
				}
				select {
				case client.send <- frame.data:
				default:
					// Slow consumer; drop the connection rather than the
					// whole relay.
					close(client.send)
					delete(h.clients, client)
					telemetry.AddConnectedPeer(-1)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request to a websocket connection and joins it to
// the relay.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	client := &hubClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", slog.Any("err", err))
			}
			return
		}
		c.hub.broadcast <- hubFrame{sender: c, data: data}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
