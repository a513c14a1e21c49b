// Package badges maintains the cached global chat badge metadata used by the
// filter editing surface. Badge sets are fetched from the Helix API when app
// credentials are configured, from a public fallback endpoint otherwise, and
// cached in the key-value store with a 12-hour TTL. Fetch failures are
// swallowed: a stale cache (even past its TTL) or an empty list is always an
// acceptable answer.
package badges

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fractalo/chat-curator/kvstore"
	"github.com/fractalo/chat-curator/telemetry"
	"github.com/fractalo/chat-curator/twitchapi"
)

// CachedKey is the storage key of the badge cache record.
const CachedKey = "cachedGlobalChatBadges"

// DefaultFallbackURL is the public endpoint used when no Helix credentials
// are configured.
const DefaultFallbackURL = "https://twitch-api-worker.fractalo.workers.dev/chat/global-badges"

const cacheTTL = 12 * time.Hour

// Source fetches global badge sets. *twitchapi.HelixClient implements it.
type Source interface {
	GetGlobalChatBadges(ctx context.Context) ([]twitchapi.ChatBadgeSet, error)
}

type cachedRecord struct {
	UpdatedAt        int64                    `json:"updatedAt"`
	GlobalChatBadges []twitchapi.ChatBadgeSet `json:"globalChatBadges"`
}

// Cache serves global chat badges from the key-value store, refreshing them
// from a primary source or the fallback endpoint when the record is stale.
type Cache struct {
	store       kvstore.Store
	primary     Source // nil when no Helix credentials are configured
	fallbackURL string
	httpClient  *http.Client
}

// NewCache builds a badge cache. primary may be nil; fallbackURL empty means
// DefaultFallbackURL.
func NewCache(store kvstore.Store, primary Source, fallbackURL string) *Cache {
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackURL
	}
	return &Cache{
		store:       store,
		primary:     primary,
		fallbackURL: fallbackURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// GetGlobalChatBadges returns the freshest badge sets available. It never
// fails: an unreachable network degrades to the stale cache or an empty list.
func (c *Cache) GetGlobalChatBadges(ctx context.Context) []twitchapi.ChatBadgeSet {
	cached := c.cachedRecord(ctx)
	if cached != nil && time.Since(time.UnixMilli(cached.UpdatedAt)) < cacheTTL {
		return cached.GlobalChatBadges
	}

	var sets []twitchapi.ChatBadgeSet
	telemetry.TimeFunc(telemetry.BadgeFetchDuration, func() {
		sets = c.fetch(ctx)
	})
	if len(sets) > 0 {
		record := cachedRecord{UpdatedAt: time.Now().UnixMilli(), GlobalChatBadges: sets}
		if err := c.store.Set(ctx, CachedKey, record); err != nil {
			slog.Warn("persist badge cache", slog.Any("err", err))
		}
		return sets
	}

	if cached != nil {
		return cached.GlobalChatBadges
	}
	return []twitchapi.ChatBadgeSet{}
}

// cachedRecord reads the persisted record, degrading to nil on malformed
// data.
func (c *Cache) cachedRecord(ctx context.Context) *cachedRecord {
	raw, err := c.store.Get(ctx, CachedKey)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var record cachedRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil
	}
	return &record
}

// fetch tries the primary Helix source, then the public fallback. Both
// failing yields nil.
func (c *Cache) fetch(ctx context.Context) []twitchapi.ChatBadgeSet {
	if c.primary != nil {
		sets, err := c.primary.GetGlobalChatBadges(ctx)
		if err == nil && len(sets) > 0 {
			return sets
		}
		if err != nil {
			slog.Warn("helix badge fetch failed", slog.Any("err", err))
		}
	}

	sets, err := c.fetchFallback(ctx)
	if err != nil {
		slog.Warn("fallback badge fetch failed", slog.Any("err", err))
		if telemetry.BadgeFetchFailed != nil {
			telemetry.BadgeFetchFailed.Inc()
		}
		return nil
	}
	return sets
}

func (c *Cache) fetchFallback(ctx context.Context) ([]twitchapi.ChatBadgeSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fallbackURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fallback badge request failed: %s", resp.Status)
	}
	var sets []twitchapi.ChatBadgeSet
	if err := json.NewDecoder(resp.Body).Decode(&sets); err != nil {
		return nil, err
	}
	return sets, nil
}
