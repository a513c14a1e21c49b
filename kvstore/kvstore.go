// Package kvstore provides a namespaced key-value store for JSON-serializable
// values, with change notifications delivered to in-process watchers on every
// mutation. Two implementations exist: a Postgres-backed store for the process
// holding persistent storage, and an in-memory store used by the evaluator
// process and tests.
package kvstore

import (
	"context"
	"encoding/json"
)

// Change describes a single key mutation. A nil New means the key was deleted;
// a nil Old means the key did not previously exist.
type Change struct {
	New json.RawMessage `json:"newValue,omitempty"`
	Old json.RawMessage `json:"oldValue,omitempty"`
}

// WatchFunc receives a batch of changes produced by one mutation call.
// Handlers are invoked synchronously, one batch at a time.
type WatchFunc func(changes map[string]Change)

// Store is a JSON key-value store with watch support.
type Store interface {
	// Get returns the raw JSON value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Set marshals value and stores it under key, notifying watchers.
	Set(ctx context.Context, key string, value any) error
	// Delete removes keys, notifying watchers with the old values. Missing
	// keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Watch registers fn for change batches and returns an unsubscribe
	// function.
	Watch(fn WatchFunc) (unsubscribe func())
}
