package filter

import (
	"context"
	"strings"
	"sync"

	"github.com/fractalo/chat-curator/kvstore"
)

// RuntimeCache holds the compiled runtime form of all filter groups. The
// process with storage access owns one instance fed by storage changes; the
// evaluator process owns another fed by patches received over the messaging
// channel. Instances are independent and safe for concurrent use.
type RuntimeCache struct {
	store kvstore.Store // nil for patch-fed caches

	mu     sync.RWMutex
	groups map[string]*GroupRuntime

	initOnce sync.Once
	initErr  error
}

// NewRuntimeCache returns an empty cache. store may be nil when the cache is
// kept consistent via patches instead of storage reads.
func NewRuntimeCache(store kvstore.Store) *RuntimeCache {
	return &RuntimeCache{store: store, groups: make(map[string]*GroupRuntime)}
}

// Load performs the one-time full initialization from storage: all groups,
// then all three filter-type lists per group in parallel. Concurrent callers
// share the same in-flight initialization; later calls are no-ops returning
// the original result.
func (c *RuntimeCache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.initOnce.Do(func() { c.initErr = c.load(ctx) })
	return c.initErr
}

func (c *RuntimeCache) load(ctx context.Context) error {
	groups, err := GetGroups(ctx, c.store)
	if err != nil {
		return err
	}
	c.UpdateGroups(groups)

	var wg sync.WaitGroup
	for id := range groups {
		for _, typ := range Types {
			wg.Add(1)
			go func(id string, typ Type) {
				defer wg.Done()
				list, err := GetList(ctx, c.store, id, typ)
				if err != nil {
					return
				}
				c.UpdateFilterList(id, typ, list)
			}(id, typ)
		}
	}
	wg.Wait()
	return nil
}

// UpdateFilterList rebuilds the runtime for one per-group filter list and
// merges it into the cache. The returned patch holds the delta actually
// applied: username and keyword sets equal to the cached ones are elided to
// avoid redundant traffic, while badge selections are always included.
func (c *RuntimeCache) UpdateFilterList(groupID string, typ Type, list List) ListPatch {
	exclude, include := compileList(typ, list)

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.groups[groupID]
	if !ok {
		cached = &GroupRuntime{}
		c.groups[groupID] = cached
	}

	elideEqualSets(cached.Exclude, exclude)
	elideEqualSets(cached.Include, include)

	if cached.Exclude == nil {
		cached.Exclude = &FiltersRuntime{}
	}
	if cached.Include == nil {
		cached.Include = &FiltersRuntime{}
	}
	cached.Exclude.Merge(exclude)
	cached.Include.Merge(include)

	patch := ListPatch{GroupID: groupID}
	if !exclude.isEmpty() {
		patch.Exclude = exclude
	}
	if !include.isEmpty() {
		patch.Include = include
	}
	return patch
}

// elideEqualSets drops username/keyword sets from target when they equal the
// cached ones. Badge selections are never elided.
func elideEqualSets(cached, target *FiltersRuntime) {
	if cached == nil {
		return
	}
	if target.Usernames != nil && cached.Usernames != nil && target.Usernames.Equal(*cached.Usernames) {
		target.Usernames = nil
	}
	if target.Keywords != nil && cached.Keywords != nil && target.Keywords.Equal(*cached.Keywords) {
		target.Keywords = nil
	}
}

// UpdateGroups recomputes the activation state and channel scope of every
// group, returning a patch that carries only changed fields. Groups no longer
// present are dropped from the cache and marked in the patch with an empty
// GroupPatch.
func (c *RuntimeCache) UpdateGroups(groups Groups) GroupsPatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	patch := make(GroupsPatch)

	for id, group := range groups {
		cached, known := c.groups[id]
		if !known {
			cached = &GroupRuntime{}
			c.groups[id] = cached
		}

		var channelIDs StringSet
		if !group.IsGlobal {
			channelIDs = NewStringSet()
			for _, channelID := range group.ChannelIDs {
				channelIDs.Add(strings.ToLower(channelID))
			}
		}

		groupPatch := &GroupPatch{}
		if !known || group.IsActive != cached.IsActive {
			isActive := group.IsActive
			groupPatch.IsActive = &isActive
			cached.IsActive = isActive
		}
		if !known || !channelSetsEqual(channelIDs, cached.ChannelIDs) {
			groupPatch.ChannelIDs = channelScope(channelIDs)
			cached.ChannelIDs = channelIDs
		}

		if groupPatch.IsActive != nil || groupPatch.ChannelIDs != nil {
			patch[id] = groupPatch
		}
	}

	for id := range c.groups {
		if _, ok := groups[id]; !ok {
			delete(c.groups, id)
			patch[id] = &GroupPatch{}
		}
	}
	return patch
}

func channelSetsEqual(a, b StringSet) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func channelScope(channelIDs StringSet) *ChannelScope {
	if channelIDs == nil {
		return &ChannelScope{Global: true}
	}
	return &ChannelScope{IDs: channelIDs.Values()}
}

// ApplyGroupsPatch merges a patch received over the messaging channel into
// the cache. Empty group patches delete the group.
func (c *RuntimeCache) ApplyGroupsPatch(patch GroupsPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, groupPatch := range patch {
		if groupPatch.IsDelete() {
			delete(c.groups, id)
			continue
		}
		cached, ok := c.groups[id]
		if !ok {
			cached = &GroupRuntime{}
			c.groups[id] = cached
		}
		if groupPatch.IsActive != nil {
			cached.IsActive = *groupPatch.IsActive
		}
		if groupPatch.ChannelIDs != nil {
			if groupPatch.ChannelIDs.Global {
				cached.ChannelIDs = nil
			} else {
				cached.ChannelIDs = NewStringSet(groupPatch.ChannelIDs.IDs...)
			}
		}
		c.applyFilterSides(cached, groupPatch.Exclude, groupPatch.Include)
	}
}

// ApplyListPatch merges a per-list delta received over the messaging channel.
func (c *RuntimeCache) ApplyListPatch(patch ListPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.groups[patch.GroupID]
	if !ok {
		cached = &GroupRuntime{}
		c.groups[patch.GroupID] = cached
	}
	c.applyFilterSides(cached, patch.Exclude, patch.Include)
}

func (c *RuntimeCache) applyFilterSides(cached *GroupRuntime, exclude, include *FiltersRuntime) {
	if exclude != nil {
		if cached.Exclude == nil {
			cached.Exclude = &FiltersRuntime{}
		}
		cached.Exclude.Merge(exclude)
	}
	if include != nil {
		if cached.Include == nil {
			cached.Include = &FiltersRuntime{}
		}
		cached.Include.Merge(include)
	}
}

// Snapshot returns the full cache state expressed as a patch, for answering
// snapshot requests from a freshly attached evaluator.
func (c *RuntimeCache) Snapshot() GroupsPatch {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copySide := func(side *FiltersRuntime) *FiltersRuntime {
		if side == nil {
			return nil
		}
		cp := *side
		return &cp
	}

	snapshot := make(GroupsPatch, len(c.groups))
	for id, cached := range c.groups {
		isActive := cached.IsActive
		snapshot[id] = &GroupPatch{
			IsActive:   &isActive,
			ChannelIDs: channelScope(cached.ChannelIDs),
			Exclude:    copySide(cached.Exclude),
			Include:    copySide(cached.Include),
		}
	}
	return snapshot
}

// Len reports the number of cached groups.
func (c *RuntimeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.groups)
}
