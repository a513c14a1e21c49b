package chat

import (
	"sync"
	"time"

	"github.com/fractalo/chat-curator/filter"
)

// Event is one chat message together with its filter verdict.
type Event struct {
	Message    filter.ChatMessage `json:"message"`
	Included   bool               `json:"included"`
	ReceivedAt time.Time          `json:"receivedAt"`
}

const subscriberBuffer = 64

// Broker fans evaluated chat events out to any number of subscribers.
// Subscribers that fall behind have events dropped rather than blocking
// the reader.
type Broker struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel function. The channel
// is closed when cancel is called.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all current subscribers without blocking.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Len reports the number of active subscribers.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
