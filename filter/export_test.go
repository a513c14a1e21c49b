package filter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fractalo/chat-curator/kvstore"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	group := Group{
		ID:       "11111111-1111-1111-1111-111111111111",
		Name:     "bots",
		IsActive: true,
		IsGlobal: true,
	}
	if err := SetGroups(ctx, store, Groups{group.ID: group}); err != nil {
		t.Fatal(err)
	}
	if err := SetList(ctx, store, group.ID, TypeUsername, List{
		"f1": UsernameFilter{Base: activeBase("f1", false), Username: "nightbot"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := SetList(ctx, store, group.ID, TypeBadge, List{
		"f2": SubscriberBadgeFilter{Base: activeBase("f2", true), HasSubscriberBadge: true, Tiers: []Tier{"3"}},
	}); err != nil {
		t.Fatal(err)
	}

	exported, err := Export(ctx, store, []Group{group})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(exported)
	if err != nil {
		t.Fatal(err)
	}

	imported, err := ParseImportedGroups(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(imported) != 1 {
		t.Fatalf("imported %d groups, want 1", len(imported))
	}
	got := imported[0]
	if got.ID != group.ID || got.Name != "bots" || !got.IsGlobal || !got.IsActive {
		t.Errorf("group metadata mismatch: %+v", got)
	}
	if len(got.Filters) != 2 {
		t.Fatalf("imported %d filters, want 2", len(got.Filters))
	}

	byID := make(map[string]Filter)
	for _, f := range got.Filters {
		byID[f.Common().ID] = f
	}
	uf, ok := byID["f1"].(UsernameFilter)
	if !ok || uf.Username != "nightbot" {
		t.Errorf("username filter mismatch: %#v", byID["f1"])
	}
	sf, ok := byID["f2"].(SubscriberBadgeFilter)
	if !ok || !sf.HasSubscriberBadge {
		t.Fatalf("subscriber filter mismatch: %#v", byID["f2"])
	}
	if diff := cmp.Diff([]Tier{"3"}, sf.Tiers); diff != "" {
		t.Errorf("subscriber tiers mismatch (-want +got):\n%s", diff)
	}
}

func TestParseImportedGroupsRegeneratesIDs(t *testing.T) {
	data := []byte(`[
		{"id": "dup", "name": "one", "isGlobal": true, "filters": []},
		{"id": "dup", "name": "two", "isGlobal": true, "filters": [
			{"id": "", "type": "username", "username": "bot", "isActive": true, "isIncluded": false},
			{"id": "fdup", "type": "username", "username": "a", "isActive": true, "isIncluded": false},
			{"id": "fdup", "type": "username", "username": "b", "isActive": true, "isIncluded": false}
		]}
	]`)

	groups, err := ParseImportedGroups(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("parsed %d groups, want 2", len(groups))
	}
	if groups[0].ID == groups[1].ID {
		t.Error("duplicate group id was not regenerated")
	}
	if groups[0].ID != "dup" {
		t.Errorf("first occurrence should keep its id, got %q", groups[0].ID)
	}

	ids := make(map[string]struct{})
	for _, f := range groups[1].Filters {
		id := f.Common().ID
		if id == "" {
			t.Error("empty filter id was not replaced")
		}
		if _, dup := ids[id]; dup {
			t.Errorf("duplicate filter id %q survived", id)
		}
		ids[id] = struct{}{}
	}
}

func TestParseImportedGroupsDropsUnusable(t *testing.T) {
	data := []byte(`[
		"not an object",
		{"name": "", "filters": []},
		{"isGlobal": true, "filters": [
			{"id": "f1", "type": "keyword", "keyword": "spam", "isActive": true, "isIncluded": false}
		]},
		{"name": "kept despite junk filters", "isGlobal": false, "channelIds": ["chan", "chan", {}], "filters": [
			{"type": "username", "username": "  ", "isActive": true, "isIncluded": false},
			{"type": "badge", "badgeType": "general", "setId": "vip", "isActive": true},
			{"type": "nonsense", "isActive": true, "isIncluded": true}
		]}
	]`)

	groups, err := ParseImportedGroups(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("parsed %d groups, want 2", len(groups))
	}

	// Nameless group with valid filters gets a generated name.
	if groups[0].Name != "Group 1" {
		t.Errorf("generated name = %q, want Group 1", groups[0].Name)
	}
	if len(groups[0].Filters) != 1 {
		t.Errorf("first group has %d filters, want 1", len(groups[0].Filters))
	}

	// Invalid filter entries are dropped, group survives on its name.
	second := groups[1]
	if len(second.Filters) != 0 {
		t.Errorf("junk filters survived: %#v", second.Filters)
	}
	if diff := cmp.Diff([]string{"chan"}, second.ChannelIDs); diff != "" {
		t.Errorf("channel ids mismatch (-want +got):\n%s", diff)
	}
}

func TestParseImportedGroupsValidatesSubscriberFields(t *testing.T) {
	data := []byte(`[
		{"name": "subs", "isGlobal": true, "filters": [
			{"id": "f1", "type": "badge", "badgeType": "subscriber", "hasSubscriberBadge": true,
			 "isActive": true, "isIncluded": true,
			 "tiers": ["1", "9", "3", 2],
			 "months": ["12", "-1", "abc", 6],
			 "monthRanges": [[1, 10], ["bad"], [null, 5]]}
		]}
	]`)

	groups, err := ParseImportedGroups(data)
	if err != nil {
		t.Fatal(err)
	}
	sf, ok := groups[0].Filters[0].(SubscriberBadgeFilter)
	if !ok {
		t.Fatalf("filter type: %#v", groups[0].Filters[0])
	}
	if diff := cmp.Diff([]Tier{"1", "3", "2"}, sf.Tiers); diff != "" {
		t.Errorf("tiers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"12", "6"}, sf.Months); diff != "" {
		t.Errorf("months mismatch (-want +got):\n%s", diff)
	}
	if len(sf.MonthRanges) != 2 {
		t.Errorf("month ranges: %v, want 2 surviving entries", sf.MonthRanges)
	}
}

func TestParseImportedGroupsRejectsNonArray(t *testing.T) {
	if _, err := ParseImportedGroups([]byte(`{"name": "x"}`)); err == nil {
		t.Error("object document should be rejected")
	}
	if _, err := ParseImportedGroups([]byte(`not json`)); err == nil {
		t.Error("malformed document should be rejected")
	}
}
