package badges

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fractalo/chat-curator/kvstore"
	"github.com/fractalo/chat-curator/testutil"
	"github.com/fractalo/chat-curator/twitchapi"
)

type stubSource struct {
	sets []twitchapi.ChatBadgeSet
	err  error
}

func (s stubSource) GetGlobalChatBadges(context.Context) ([]twitchapi.ChatBadgeSet, error) {
	return s.sets, s.err
}

func writeCacheRecord(t *testing.T, store kvstore.Store, updatedAt time.Time, sets []twitchapi.ChatBadgeSet) {
	t.Helper()
	err := store.Set(context.Background(), CachedKey, map[string]any{
		"updatedAt":        updatedAt.UnixMilli(),
		"globalChatBadges": sets,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFreshCacheSkipsFetch(t *testing.T) {
	store := kvstore.NewMemory()
	writeCacheRecord(t, store, time.Now().Add(-time.Hour), []twitchapi.ChatBadgeSet{
		{SetID: "moderator"},
	})

	// Any fetch attempt would fail loudly.
	cache := NewCache(store, stubSource{err: fmt.Errorf("must not be called")}, "http://127.0.0.1:0")

	sets := cache.GetGlobalChatBadges(context.Background())
	if len(sets) != 1 || sets[0].SetID != "moderator" {
		t.Errorf("got %+v, want the cached moderator set", sets)
	}
}

func TestStaleCacheRefreshesFromPrimary(t *testing.T) {
	store := kvstore.NewMemory()
	writeCacheRecord(t, store, time.Now().Add(-13*time.Hour), []twitchapi.ChatBadgeSet{
		{SetID: "old"},
	})

	cache := NewCache(store, stubSource{sets: []twitchapi.ChatBadgeSet{{SetID: "vip"}}}, "http://127.0.0.1:0")

	sets := cache.GetGlobalChatBadges(context.Background())
	if len(sets) != 1 || sets[0].SetID != "vip" {
		t.Fatalf("got %+v, want refreshed vip set", sets)
	}

	// The refreshed record was persisted.
	raw, err := store.Get(context.Background(), CachedKey)
	if err != nil {
		t.Fatal(err)
	}
	var record struct {
		UpdatedAt        int64                    `json:"updatedAt"`
		GlobalChatBadges []twitchapi.ChatBadgeSet `json:"globalChatBadges"`
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatal(err)
	}
	if len(record.GlobalChatBadges) != 1 || record.GlobalChatBadges[0].SetID != "vip" {
		t.Errorf("persisted record mismatch: %+v", record)
	}
	if time.Since(time.UnixMilli(record.UpdatedAt)) > time.Minute {
		t.Error("persisted record did not refresh its timestamp")
	}
}

func TestFallbackEndpointUsed(t *testing.T) {
	server := testutil.NewMockTwitchServer(t)
	server.MockFallbackBadgesResponse([]map[string]any{
		{"set_id": "bits", "versions": []map[string]string{{"id": "100"}}},
	})

	store := kvstore.NewMemory()
	cache := NewCache(store, nil, server.URL+"/chat/global-badges")

	sets := cache.GetGlobalChatBadges(context.Background())
	if len(sets) != 1 || sets[0].SetID != "bits" {
		t.Errorf("got %+v, want the fallback bits set", sets)
	}
}

func TestFetchFailureServesStaleCache(t *testing.T) {
	store := kvstore.NewMemory()
	writeCacheRecord(t, store, time.Now().Add(-48*time.Hour), []twitchapi.ChatBadgeSet{
		{SetID: "stale"},
	})

	cache := NewCache(store, stubSource{err: fmt.Errorf("network down")}, "http://127.0.0.1:0")

	sets := cache.GetGlobalChatBadges(context.Background())
	if len(sets) != 1 || sets[0].SetID != "stale" {
		t.Errorf("got %+v, want the stale cached set", sets)
	}
}

func TestNoCacheNoNetworkYieldsEmpty(t *testing.T) {
	store := kvstore.NewMemory()
	cache := NewCache(store, nil, "http://127.0.0.1:0")

	sets := cache.GetGlobalChatBadges(context.Background())
	if sets == nil {
		t.Fatal("result must be an empty list, not nil")
	}
	if len(sets) != 0 {
		t.Errorf("got %+v, want empty", sets)
	}
}

func TestMalformedCacheRecordIgnored(t *testing.T) {
	store := kvstore.NewMemory()
	if err := store.Set(context.Background(), CachedKey, "garbage"); err != nil {
		t.Fatal(err)
	}

	cache := NewCache(store, stubSource{sets: []twitchapi.ChatBadgeSet{{SetID: "vip"}}}, "http://127.0.0.1:0")
	sets := cache.GetGlobalChatBadges(context.Background())
	if len(sets) != 1 || sets[0].SetID != "vip" {
		t.Errorf("got %+v, want fetch result despite garbage cache", sets)
	}
}
