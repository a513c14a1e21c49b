// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"

	"github.com/fractalo/chat-curator/badges"
	"github.com/fractalo/chat-curator/chat"
	"github.com/fractalo/chat-curator/filter"
	"github.com/fractalo/chat-curator/kvstore"
)

// Deps bundles the collaborators the HTTP handlers operate on. DB is optional
// and only used by the health probes; with the in-memory store it stays nil.
type Deps struct {
	Store  kvstore.Store
	Cache  *filter.RuntimeCache
	Badges *badges.Cache
	Broker *chat.Broker
	DB     *sql.DB
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx    context.Context
	store  kvstore.Store
	cache  *filter.RuntimeCache
	badges *badges.Cache
	broker *chat.Broker
	db     *sql.DB
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, deps Deps) *Handlers {
	return &Handlers{
		ctx:    ctx,
		store:  deps.Store,
		cache:  deps.Cache,
		badges: deps.Badges,
		broker: deps.Broker,
		db:     deps.DB,
	}
}
