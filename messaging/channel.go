package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRequestTimeout bounds WaitForMessage and Request when the caller
// passes no explicit timeout.
const DefaultRequestTimeout = 10 * time.Second

// PostConfig describes one outgoing message. To is empty for broadcasts; a
// zero ContextID is replaced with a fresh UUID.
type PostConfig struct {
	Type      string
	Content   any
	To        string
	ContextID string
}

// ResponseFunc receives the response correlated with a posted request.
type ResponseFunc func(Message)

// Channel is one messaging endpoint. It attaches to a Bus under a unique id,
// performs the READY handshake with every peer it hears from, dispatches
// incoming messages to registered handlers, and tracks pending response
// callbacks by context id. Safe for concurrent use.
type Channel struct {
	id     string
	bus    Bus
	detach func()

	mu                sync.Mutex
	connections       map[string]struct{}
	responseCallbacks map[string]ResponseFunc
	connectHandlers   map[int]func(peerID string)
	messageHandlers   map[int]func(Message)
	nextID            int
}

// NewChannel attaches a new endpoint to bus and announces it with a READY
// broadcast.
func NewChannel(id string, bus Bus) *Channel {
	c := &Channel{
		id:                id,
		bus:               bus,
		connections:       make(map[string]struct{}),
		responseCallbacks: make(map[string]ResponseFunc),
		connectHandlers:   make(map[int]func(string)),
		messageHandlers:   make(map[int]func(Message)),
	}
	c.detach = bus.Attach(c.handle)
	c.Post(PostConfig{Type: TypeReady}, nil)
	return c
}

// ID returns the endpoint id.
func (c *Channel) ID() string { return c.id }

// Close detaches the endpoint from the bus. Pending callbacks are dropped.
func (c *Channel) Close() {
	c.detach()
	c.mu.Lock()
	c.responseCallbacks = make(map[string]ResponseFunc)
	c.mu.Unlock()
}

func (c *Channel) handle(msg Message) {
	if msg.From == "" || msg.From == c.id || (msg.To != "" && msg.To != c.id) {
		return
	}

	if msg.Type == TypeReady {
		c.mu.Lock()
		if _, known := c.connections[msg.From]; known {
			c.mu.Unlock()
			return
		}
		c.connections[msg.From] = struct{}{}
		handlers := make([]func(string), 0, len(c.connectHandlers))
		for _, fn := range c.connectHandlers {
			handlers = append(handlers, fn)
		}
		c.mu.Unlock()

		// Reply so the peer learns about us, then announce the connection
		// locally.
		c.Post(PostConfig{Type: TypeReady}, nil)
		for _, fn := range handlers {
			fn(msg.From)
		}
		return
	}

	c.mu.Lock()
	handlers := make([]func(Message), 0, len(c.messageHandlers))
	for _, fn := range c.messageHandlers {
		handlers = append(handlers, fn)
	}
	var callback ResponseFunc
	if msg.ContextID != "" {
		callback = c.responseCallbacks[msg.ContextID]
		delete(c.responseCallbacks, msg.ContextID)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(msg)
	}
	if callback != nil {
		callback(msg)
	}
}

// OnConnect registers fn for peer-connected events and returns an unregister
// function.
func (c *Channel) OnConnect(fn func(peerID string)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.connectHandlers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.connectHandlers, id)
		c.mu.Unlock()
	}
}

// OnMessage registers fn for every non-handshake message addressed to this
// endpoint and returns an unregister function.
func (c *Channel) OnMessage(fn func(Message)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.messageHandlers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.messageHandlers, id)
		c.mu.Unlock()
	}
}

// Post sends one message. When responseCallback is non-nil it is invoked
// at most once, with the first message carrying the same context id. A failed
// send cleans the pending callback up again; send errors are logged, not
// returned, matching the fire-and-forget posting model.
func (c *Channel) Post(cfg PostConfig, responseCallback ResponseFunc) {
	contextID := cfg.ContextID
	if contextID == "" {
		contextID = uuid.New().String()
	}

	var content json.RawMessage
	if cfg.Content != nil {
		data, err := json.Marshal(cfg.Content)
		if err != nil {
			slog.Error("marshal message content", slog.String("type", cfg.Type), slog.Any("err", err))
			return
		}
		content = data
	}

	if responseCallback != nil {
		c.mu.Lock()
		c.responseCallbacks[contextID] = responseCallback
		c.mu.Unlock()
	}

	msg := Message{
		Type:      cfg.Type,
		Content:   content,
		From:      c.id,
		To:        cfg.To,
		ContextID: contextID,
	}
	if err := c.bus.Post(msg); err != nil {
		slog.Error("post message", slog.String("type", cfg.Type), slog.Any("err", err))
		c.mu.Lock()
		delete(c.responseCallbacks, contextID)
		c.mu.Unlock()
	}
}

// IsConnected reports whether the handshake with id has completed.
func (c *Channel) IsConnected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.connections[id]
	return ok
}

// WaitForConnected blocks until the handshake with targetID completes or ctx
// is done. There is deliberately no timeout: the peer is expected to
// eventually attach.
func (c *Channel) WaitForConnected(ctx context.Context, targetID string) error {
	if c.IsConnected(targetID) {
		return nil
	}

	connected := make(chan struct{}, 1)
	unregister := c.OnConnect(func(id string) {
		if id == targetID {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	defer unregister()

	// The handshake may have completed between the check and the handler
	// registration.
	if c.IsConnected(targetID) {
		return nil
	}

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForMessage blocks until a message of the given type arrives from the
// given peer, returning its content. A timeout or cancelled context yields
// nil rather than an error; callers treat nil as "no answer". A zero timeout
// applies DefaultRequestTimeout; a negative timeout waits until ctx is done.
func (c *Channel) WaitForMessage(ctx context.Context, from, msgType string, timeout time.Duration) json.RawMessage {
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	received := make(chan json.RawMessage, 1)
	unregister := c.OnMessage(func(msg Message) {
		if msg.From == from && msg.Type == msgType {
			select {
			case received <- msg.Content:
			default:
			}
		}
	})
	defer unregister()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case content := <-received:
		return content
	case <-timer:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Request posts a message and waits for the correlated response, returning
// its content. A timeout or cancelled context yields nil. A zero timeout
// applies DefaultRequestTimeout.
func (c *Channel) Request(ctx context.Context, cfg PostConfig, timeout time.Duration) json.RawMessage {
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	if cfg.ContextID == "" {
		cfg.ContextID = uuid.New().String()
	}

	received := make(chan json.RawMessage, 1)
	c.Post(cfg, func(msg Message) {
		received <- msg.Content
	})

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case content := <-received:
		return content
	case <-timer:
	case <-ctx.Done():
	}

	c.mu.Lock()
	delete(c.responseCallbacks, cfg.ContextID)
	c.mu.Unlock()
	return nil
}
