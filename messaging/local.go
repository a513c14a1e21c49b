package messaging

import "sync"

// LocalBus is an in-process Bus. Delivery is synchronous: Post invokes every
// attached handler on the caller's goroutine before returning. The handler
// list is copied before dispatch, so handlers may post or attach re-entrantly.
type LocalBus struct {
	mu       sync.Mutex
	handlers map[int]func(Message)
	nextID   int
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]func(Message))}
}

func (b *LocalBus) Attach(fn func(Message)) func() {
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

func (b *LocalBus) Post(msg Message) error {
	b.mu.Lock()
	fns := make([]func(Message), 0, len(b.handlers))
	for _, fn := range b.handlers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
	return nil
}
