package filter

import (
	"testing"

	"github.com/fractalo/chat-curator/ranges"
)

// buildCache compiles groups and per-type lists into a fresh runtime cache.
func buildCache(t *testing.T, groups Groups, lists map[string]map[Type]List) *RuntimeCache {
	t.Helper()
	cache := NewRuntimeCache(nil)
	cache.UpdateGroups(groups)
	for groupID, byType := range lists {
		for typ, list := range byType {
			cache.UpdateFilterList(groupID, typ, list)
		}
	}
	return cache
}

func TestEvaluateDefaultDeny(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeUsername: {
				"a": UsernameFilter{Base: activeBase("a", true), Username: "friend"},
			}},
		},
	)

	if cache.Evaluate(ChatMessage{ChannelLogin: "chan", UserLogin: "nightbot", MessageBody: "song request"}) {
		t.Error("message matching no filter should be hidden")
	}
	if !cache.Evaluate(ChatMessage{ChannelLogin: "chan", UserLogin: "friend", MessageBody: "hello"}) {
		t.Error("included username should be shown")
	}
}

func TestEvaluateExcludeDominates(t *testing.T) {
	// The exclude lives in a different group than the include; any matching
	// exclude hides the message regardless of group order.
	cache := buildCache(t,
		Groups{
			"g1": {ID: "g1", IsActive: true, IsGlobal: true},
			"g2": {ID: "g2", IsActive: true, IsGlobal: true},
		},
		map[string]map[Type]List{
			"g1": {TypeUsername: {
				"a": UsernameFilter{Base: activeBase("a", true), Username: "spammer"},
			}},
			"g2": {TypeKeyword: {
				"b": KeywordFilter{Base: activeBase("b", false), Keyword: "bit.ly"},
			}},
		},
	)

	msg := ChatMessage{ChannelLogin: "chan", UserLogin: "spammer", MessageBody: "check bit.ly/xyz"}
	if cache.Evaluate(msg) {
		t.Error("excluded keyword must override the username include")
	}
}

func TestEvaluateInactiveAndScopedGroups(t *testing.T) {
	cache := buildCache(t,
		Groups{
			"inactive": {ID: "inactive", IsActive: false, IsGlobal: true},
			"scoped":   {ID: "scoped", IsActive: true, ChannelIDs: []string{"MyChannel"}},
		},
		map[string]map[Type]List{
			"inactive": {TypeUsername: {
				"a": UsernameFilter{Base: activeBase("a", true), Username: "viewer"},
			}},
			"scoped": {TypeUsername: {
				"b": UsernameFilter{Base: activeBase("b", true), Username: "viewer"},
			}},
		},
	)

	if cache.Evaluate(ChatMessage{ChannelLogin: "otherchannel", UserLogin: "viewer"}) {
		t.Error("scoped group must not apply on a foreign channel")
	}
	if !cache.Evaluate(ChatMessage{ChannelLogin: "mychannel", UserLogin: "viewer"}) {
		t.Error("scoped group should apply on its own channel")
	}
	if cache.Evaluate(ChatMessage{ChannelLogin: "", UserLogin: "viewer"}) {
		t.Error("scoped group must not apply when the channel is unknown")
	}
}

func TestEvaluateUsernameDisplayName(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeUsername: {
				"a": UsernameFilter{Base: activeBase("a", true), Username: "SomeUser"},
			}},
		},
	)

	// Login names arrive lowercased and match the lowercased set.
	if !cache.Evaluate(ChatMessage{ChannelLogin: "chan", UserLogin: "someuser"}) {
		t.Error("lowercased login should match")
	}
	// Display names are matched verbatim; a cased display name misses the
	// lowercased set.
	if cache.Evaluate(ChatMessage{ChannelLogin: "chan", UserLogin: "other", UserDisplayName: "SomeUser"}) {
		t.Error("cased display name must not match the lowercased set")
	}
}

func TestEvaluateBadgeMatchAny(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeBadge: {
				"a": GeneralBadgeFilter{Base: activeBase("a", true), SetID: "moderator"},
			}},
		},
	)

	if !cache.Evaluate(ChatMessage{ChannelLogin: "chan", UserLogin: "mod", Badges: map[string]string{"moderator": "1"}}) {
		t.Error("any moderator badge version should match")
	}
	if cache.Evaluate(ChatMessage{ChannelLogin: "chan", UserLogin: "pleb", Badges: map[string]string{"vip": "1"}}) {
		t.Error("unrelated badge must not match")
	}
}

func TestEvaluateBadgeVersionsAndRanges(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeBadge: {
				"a": GeneralBadgeFilter{
					Base:          activeBase("a", true),
					SetID:         "sub-gifter",
					Versions:      []string{"1"},
					VersionRanges: []ranges.Range{ranges.New(ranges.Bound(100), nil)},
				},
			}},
		},
	)

	cases := []struct {
		version string
		want    bool
	}{
		{"1", true},    // exact version
		{"100", true},  // range lower bound
		{"5000", true}, // unbounded upper side
		{"50", false},  // neither
	}
	for _, tc := range cases {
		msg := ChatMessage{ChannelLogin: "chan", Badges: map[string]string{"sub-gifter": tc.version}}
		if got := cache.Evaluate(msg); got != tc.want {
			t.Errorf("sub-gifter version %s: got %v, want %v", tc.version, got, tc.want)
		}
	}
}

func TestEvaluateSubscriberBadge(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeBadge: {
				"a": SubscriberBadgeFilter{
					Base:               activeBase("a", true),
					HasSubscriberBadge: true,
					Tiers:              []Tier{"2"},
					MonthRanges:        []ranges.Range{ranges.New(ranges.Bound(12), nil)},
				},
			}},
		},
	)

	eval := func(version string, months float64) bool {
		msg := ChatMessage{
			ChannelLogin: "chan",
			Badges:       map[string]string{"subscriber": version},
		}
		if months > 0 {
			msg.BadgeDynamicData = map[string]float64{"subscriber": months}
		}
		return cache.Evaluate(msg)
	}

	// "2018" decodes as tier 2, months 018; the real month count comes from
	// the dynamic data when present.
	if !eval("2018", 18) {
		t.Error("tier 2, 18 months should match the >=12 range")
	}
	if eval("2006", 6) {
		t.Error("tier 2, 6 months is below the range")
	}
	// Versions of up to three characters are tier 1 month counts.
	if eval("24", 24) {
		t.Error("tier 1 badge must not match a tier 2 selection")
	}
	// Without dynamic data the months are parsed from the version string.
	if !eval("2024", 0) {
		t.Error("months parsed from the version string should match")
	}
}

func TestEvaluateSubscriberAllTiers(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeBadge: {
				"a": SubscriberBadgeFilter{Base: activeBase("a", true), HasSubscriberBadge: true},
			}},
		},
	)

	if !cache.Evaluate(ChatMessage{ChannelLogin: "chan", Badges: map[string]string{"subscriber": "3012"}}) {
		t.Error("any subscriber badge should match an unconstrained filter")
	}
	if cache.Evaluate(ChatMessage{ChannelLogin: "chan", Badges: map[string]string{"vip": "1"}}) {
		t.Error("non-subscriber must not match")
	}
}

func TestEvaluateNoSubscriberBadge(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeBadge: {
				"a": SubscriberBadgeFilter{Base: activeBase("a", false), HasSubscriberBadge: false},
			}},
		},
	)

	if cache.Evaluate(ChatMessage{ChannelLogin: "chan", Badges: map[string]string{"vip": "1"}}) == true {
		t.Error("badge-carrying non-subscriber should be excluded")
	}
	// A message with no badge record at all carries no badge information;
	// the no-subscriber-badge filter does not fire.
	if matchesNoSubscriberBadgeFilter(ChatMessage{}, &FiltersRuntime{
		SubscriberBadge: &SubscriberBadgeSelection{SelectNoSubscriberBadge: true},
	}) {
		t.Error("missing badge record must not count as having no subscriber badge")
	}
}

func TestEvaluateFounderDynamicData(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeBadge: {
				"a": GeneralBadgeFilter{
					Base:          activeBase("a", true),
					SetID:         "founder",
					VersionRanges: []ranges.Range{ranges.New(ranges.Bound(6), nil)},
				},
			}},
		},
	)

	// The founder badge version string is always "0"; months live in the
	// dynamic data.
	match := ChatMessage{
		ChannelLogin:     "chan",
		Badges:           map[string]string{"founder": "0"},
		BadgeDynamicData: map[string]float64{"founder": 9},
	}
	if !cache.Evaluate(match) {
		t.Error("founder with 9 months should match the >=6 range")
	}
	miss := ChatMessage{
		ChannelLogin:     "chan",
		Badges:           map[string]string{"founder": "0"},
		BadgeDynamicData: map[string]float64{"founder": 3},
	}
	if cache.Evaluate(miss) {
		t.Error("founder with 3 months is below the range")
	}
}

func TestEvaluateKeyword(t *testing.T) {
	cache := buildCache(t,
		Groups{"g1": {ID: "g1", IsActive: true, IsGlobal: true}},
		map[string]map[Type]List{
			"g1": {TypeKeyword: {
				"a": KeywordFilter{Base: activeBase("a", false), Keyword: "Buy Followers"},
			}},
		},
	)

	// Message bodies arrive lowercased; keywords are stored lowercased.
	hidden := ChatMessage{ChannelLogin: "chan", UserLogin: "spam", MessageBody: "wow buy followers cheap"}
	if cache.Evaluate(hidden) {
		t.Error("substring keyword match should exclude the message")
	}
}

func TestParseSubscriberBadgeVersion(t *testing.T) {
	cases := []struct {
		version string
		tier    Tier
		months  string
		ok      bool
	}{
		{"218", "1", "218", true}, // three chars: whole string is tier 1 months
		{"26", "1", "26", true},
		{"2018", "2", "018", true},
		{"3024", "3", "024", true},
		{"9024", "", "", false}, // 9 is not a tier
		{"", "", "", false},
	}
	for _, tc := range cases {
		got, ok := parseSubscriberBadgeVersion(tc.version)
		if ok != tc.ok || got.tier != tc.tier || got.months != tc.months {
			t.Errorf("parse %q = (%q, %q, %v), want (%q, %q, %v)",
				tc.version, got.tier, got.months, ok, tc.tier, tc.months, tc.ok)
		}
	}
}
