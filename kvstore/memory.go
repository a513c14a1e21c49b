package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]json.RawMessage
	watchers map[int]WatchFunc
	nextID   int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]json.RawMessage),
		watchers: make(map[int]WatchFunc),
	}
}

func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %q: %w", key, err)
	}

	m.mu.Lock()
	old := m.data[key]
	m.data[key] = data
	m.mu.Unlock()

	m.notify(map[string]Change{key: {New: data, Old: old}})
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	changes := make(map[string]Change)

	m.mu.Lock()
	for _, key := range keys {
		old, ok := m.data[key]
		if !ok {
			continue
		}
		delete(m.data, key)
		changes[key] = Change{Old: old}
	}
	m.mu.Unlock()

	if len(changes) > 0 {
		m.notify(changes)
	}
	return nil
}

func (m *Memory) Watch(fn WatchFunc) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// notify dispatches a change batch to all watchers. The watcher list is copied
// so handlers may subscribe or unsubscribe re-entrantly.
func (m *Memory) notify(changes map[string]Change) {
	m.mu.RLock()
	fns := make([]WatchFunc, 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(changes)
	}
}
