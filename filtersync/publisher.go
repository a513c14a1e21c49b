package filtersync

import (
	"context"
	"log/slog"

	"github.com/fractalo/chat-curator/filter"
	"github.com/fractalo/chat-curator/kvstore"
	"github.com/fractalo/chat-curator/messaging"
	"github.com/fractalo/chat-curator/telemetry"
)

// Publisher is the storage-side endpoint. It owns the authoritative
// RuntimeCache, keeps it consistent with the key-value store, and feeds every
// attached evaluator: a full snapshot on connect or on request, minimal
// patches afterwards.
type Publisher struct {
	cache   *filter.RuntimeCache
	channel *messaging.Channel
	store   kvstore.Store

	stops []func()
}

// NewPublisher builds a publisher over store posting through channel.
func NewPublisher(store kvstore.Store, channel *messaging.Channel) *Publisher {
	return &Publisher{
		cache:   filter.NewRuntimeCache(store),
		channel: channel,
		store:   store,
	}
}

// Cache exposes the authoritative runtime cache.
func (p *Publisher) Cache() *filter.RuntimeCache { return p.cache }

// Start loads the full runtime state from storage and begins publishing.
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.cache.Load(ctx); err != nil {
		return err
	}
	telemetry.SetCachedGroups(p.cache.Len())

	p.stops = append(p.stops,
		p.channel.OnConnect(p.handleConnect),
		p.channel.OnMessage(p.handleMessage),
		p.store.Watch(p.handleStorageChanges),
	)
	slog.Info("filter publisher started", slog.Int("groups", p.cache.Len()))
	return nil
}

// Stop detaches the publisher from the store and the channel.
func (p *Publisher) Stop() {
	for _, stop := range p.stops {
		stop()
	}
	p.stops = nil
}

// handleConnect pushes the full runtime state to a freshly attached peer, so
// evaluators that missed earlier patches start consistent.
func (p *Publisher) handleConnect(peerID string) {
	p.channel.Post(messaging.PostConfig{
		Type:    MsgTypeGroups,
		Content: p.cache.Snapshot(),
		To:      peerID,
	}, nil)
	telemetry.IncSnapshotsServed()
}

func (p *Publisher) handleMessage(msg messaging.Message) {
	if msg.Type != MsgTypeGetGroups {
		return
	}
	p.channel.Post(messaging.PostConfig{
		Type:      MsgTypeGroups,
		Content:   p.cache.Snapshot(),
		To:        msg.From,
		ContextID: msg.ContextID,
	}, nil)
	telemetry.IncSnapshotsServed()
}

// handleStorageChanges recompiles every changed filter record and posts the
// resulting patches. Per-list deltas across one batch are merged into a
// single group-keyed patch message; the groups record is handled after the
// lists so a combined write of both keys lands in order.
func (p *Publisher) handleStorageChanges(changes map[string]kvstore.Change) {
	listsPatch := make(filter.GroupsPatch)

	for key, change := range changes {
		if len(change.New) == 0 {
			continue
		}
		groupID, typ, ok := filter.ParseListKey(key)
		if !ok {
			continue
		}
		patch := p.cache.UpdateFilterList(groupID, typ, filter.DecodeList(change.New, typ))
		if patch.IsEmpty() {
			continue
		}
		groupPatch, ok := listsPatch[groupID]
		if !ok {
			groupPatch = &filter.GroupPatch{}
			listsPatch[groupID] = groupPatch
		}
		if patch.Exclude != nil {
			if groupPatch.Exclude == nil {
				groupPatch.Exclude = &filter.FiltersRuntime{}
			}
			groupPatch.Exclude.Merge(patch.Exclude)
		}
		if patch.Include != nil {
			if groupPatch.Include == nil {
				groupPatch.Include = &filter.FiltersRuntime{}
			}
			groupPatch.Include.Merge(patch.Include)
		}
	}

	if len(listsPatch) > 0 {
		p.post(listsPatch)
	}

	if change, ok := changes[filter.GroupsKey]; ok && len(change.New) > 0 {
		patch := p.cache.UpdateGroups(filter.DecodeGroups(change.New))
		if len(patch) > 0 {
			p.post(patch)
		}
		telemetry.SetCachedGroups(p.cache.Len())
	}
}

func (p *Publisher) post(patch filter.GroupsPatch) {
	p.channel.Post(messaging.PostConfig{Type: MsgTypePatch, Content: patch}, nil)
	telemetry.IncPatchesPublished()
}
