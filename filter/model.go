// Package filter implements the chat filter engine: the persisted filter and
// group model, compilation of raw filter lists into query-optimized runtime
// structures with incremental patch computation, per-message evaluation, and
// export/import of filter groups.
package filter

import (
	"encoding/json"

	"github.com/fractalo/chat-curator/ranges"
)

// Type discriminates the kinds of chat filters. Each filter group persists one
// list per type.
type Type string

const (
	TypeUsername Type = "username"
	TypeKeyword  Type = "keyword"
	TypeBadge    Type = "badge"
)

// Types lists all filter types in storage-key order.
var Types = []Type{TypeUsername, TypeKeyword, TypeBadge}

// Tier is a subscriber badge tier.
type Tier string

// SubscriberTiers lists all subscriber badge tiers.
var SubscriberTiers = []Tier{"1", "2", "3"}

func isSubscriberTier(s string) bool {
	for _, t := range SubscriberTiers {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Base carries the fields shared by every filter.
type Base struct {
	ID         string `json:"id"`
	IsActive   bool   `json:"isActive"`
	IsIncluded bool   `json:"isIncluded"`
	ModifiedAt int64  `json:"modifiedAt"`
}

// Filter is the tagged union of all chat filter kinds. Concrete types are
// UsernameFilter, KeywordFilter, GeneralBadgeFilter and SubscriberBadgeFilter.
// The JSON form carries "type" (and "badgeType" for badges) as discriminants.
type Filter interface {
	FilterType() Type
	Common() Base
}

// UsernameFilter selects messages by the author's login or display name.
type UsernameFilter struct {
	Base
	Username    string `json:"username"`
	Description string `json:"description,omitempty"`
}

func (f UsernameFilter) FilterType() Type { return TypeUsername }
func (f UsernameFilter) Common() Base     { return f.Base }

func (f UsernameFilter) MarshalJSON() ([]byte, error) {
	type alias UsernameFilter
	return json.Marshal(struct {
		Kind Type `json:"type"`
		alias
	}{TypeUsername, alias(f)})
}

// KeywordFilter selects messages containing a keyword.
type KeywordFilter struct {
	Base
	Keyword string `json:"keyword"`
}

func (f KeywordFilter) FilterType() Type { return TypeKeyword }
func (f KeywordFilter) Common() Base     { return f.Base }

func (f KeywordFilter) MarshalJSON() ([]byte, error) {
	type alias KeywordFilter
	return json.Marshal(struct {
		Kind Type `json:"type"`
		alias
	}{TypeKeyword, alias(f)})
}

// GeneralBadgeFilter selects messages carrying a non-subscriber badge. When
// both Versions and VersionRanges are absent, any version of the badge
// matches.
type GeneralBadgeFilter struct {
	Base
	SetID         string         `json:"setId"`
	Versions      []string       `json:"versions,omitempty"`
	VersionRanges []ranges.Range `json:"versionRanges,omitempty"`
}

func (f GeneralBadgeFilter) FilterType() Type { return TypeBadge }
func (f GeneralBadgeFilter) Common() Base     { return f.Base }

func (f GeneralBadgeFilter) MarshalJSON() ([]byte, error) {
	type alias GeneralBadgeFilter
	return json.Marshal(struct {
		Kind      Type   `json:"type"`
		BadgeType string `json:"badgeType"`
		alias
	}{TypeBadge, badgeTypeGeneral, alias(f)})
}

// SubscriberBadgeFilter selects messages by subscriber badge state. When
// HasSubscriberBadge is false the filter selects messages with no subscriber
// badge at all. A missing Tiers list means all tiers; missing Months and
// MonthRanges mean any month.
type SubscriberBadgeFilter struct {
	Base
	HasSubscriberBadge bool           `json:"hasSubscriberBadge"`
	Tiers              []Tier         `json:"tiers,omitempty"`
	Months             []string       `json:"months,omitempty"`
	MonthRanges        []ranges.Range `json:"monthRanges,omitempty"`
}

func (f SubscriberBadgeFilter) FilterType() Type { return TypeBadge }
func (f SubscriberBadgeFilter) Common() Base     { return f.Base }

func (f SubscriberBadgeFilter) MarshalJSON() ([]byte, error) {
	type alias SubscriberBadgeFilter
	return json.Marshal(struct {
		Kind      Type   `json:"type"`
		BadgeType string `json:"badgeType"`
		SetID     string `json:"setId"`
		alias
	}{TypeBadge, badgeTypeSubscriber, badgeTypeSubscriber, alias(f)})
}

const (
	badgeTypeGeneral    = "general"
	badgeTypeSubscriber = "subscriber"
)

// List is a persisted per-group per-type filter list keyed by filter id.
// Values are constrained to the list's type by construction; entries of a
// foreign type are ignored during compilation.
type List map[string]Filter

// Group bundles filter lists of all types, scoped to all channels
// (IsGlobal) or an explicit channel allowlist. A group that is neither global
// nor has channel ids applies nowhere.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ModifiedAt  int64    `json:"modifiedAt"`
	FilterCount int      `json:"filterCount"`
	IsActive    bool     `json:"isActive"`
	IsGlobal    bool     `json:"isGlobal"`
	ChannelIDs  []string `json:"channelIds,omitempty"`
}

// Groups is the persisted group record keyed by group id.
type Groups map[string]Group
