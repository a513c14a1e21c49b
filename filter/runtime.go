package filter

import "github.com/fractalo/chat-curator/ranges"

// GeneralBadgeSelection is the compiled form of badge version constraints for
// one badge set id (or one subscriber tier). Versions holds exact version
// strings; VersionRanges is kept merged (sorted, non-overlapping).
type GeneralBadgeSelection struct {
	Versions      StringSet      `json:"versions"`
	VersionRanges []ranges.Range `json:"versionRanges"`
}

func newGeneralBadgeSelection() *GeneralBadgeSelection {
	return &GeneralBadgeSelection{Versions: NewStringSet()}
}

// BadgeSelectionMap maps badge set ids to their compiled selections. A nil
// selection value means "match any version of this badge".
type BadgeSelectionMap map[string]*GeneralBadgeSelection

// SubscriberBadgeSelection is the compiled form of subscriber badge
// constraints for one inclusion side.
//
// The tier selections are tri-state: when AllTiers is set, any tier and month
// matches; otherwise a nil Selections map means no subscriber badge filter is
// configured, and a non-nil map holds per-tier month selections (a nil entry
// value meaning "any month of that tier").
type SubscriberBadgeSelection struct {
	SelectNoSubscriberBadge bool                            `json:"selectNoSubscriberBadge"`
	AllTiers                bool                            `json:"allTiers,omitempty"`
	Selections              map[Tier]*GeneralBadgeSelection `json:"selections,omitempty"`
}

// FiltersRuntime is the compiled, denormalized form of one inclusion side of
// a filter group. All fields are optional: a nil field means the type has not
// been compiled (or was elided from a patch as unchanged). Username and
// keyword sets are pre-lowercased.
type FiltersRuntime struct {
	Usernames       *StringSet                `json:"usernames,omitempty"`
	Keywords        *StringSet                `json:"keywords,omitempty"`
	Badges          *BadgeSelectionMap        `json:"badges,omitempty"`
	SubscriberBadge *SubscriberBadgeSelection `json:"subscriberBadge,omitempty"`
}

func (f *FiltersRuntime) isEmpty() bool {
	return f == nil || (f.Usernames == nil && f.Keywords == nil && f.Badges == nil && f.SubscriberBadge == nil)
}

// Merge shallow-merges src onto f: any field present in src overwrites the
// corresponding field of f.
func (f *FiltersRuntime) Merge(src *FiltersRuntime) {
	if src == nil {
		return
	}
	if src.Usernames != nil {
		f.Usernames = src.Usernames
	}
	if src.Keywords != nil {
		f.Keywords = src.Keywords
	}
	if src.Badges != nil {
		f.Badges = src.Badges
	}
	if src.SubscriberBadge != nil {
		f.SubscriberBadge = src.SubscriberBadge
	}
}

// ChannelScope describes which channels a group applies to. Global scopes
// apply everywhere; otherwise IDs holds a lowercase channel login allowlist.
type ChannelScope struct {
	Global bool     `json:"global,omitempty"`
	IDs    []string `json:"ids,omitempty"`
}

// GroupRuntime is the compiled per-group cache entry.
type GroupRuntime struct {
	IsActive   bool
	ChannelIDs StringSet // nil means applied globally
	Exclude    *FiltersRuntime
	Include    *FiltersRuntime
}

// GroupPatch is a minimal delta for one group. Nil fields are unchanged. A
// patch with every field nil marks the group as deleted.
type GroupPatch struct {
	IsActive   *bool           `json:"isActive,omitempty"`
	ChannelIDs *ChannelScope   `json:"channelIds,omitempty"`
	Exclude    *FiltersRuntime `json:"excludeFilters,omitempty"`
	Include    *FiltersRuntime `json:"includeFilters,omitempty"`
}

// IsDelete reports whether the patch marks a deleted group.
func (p *GroupPatch) IsDelete() bool {
	return p != nil && p.IsActive == nil && p.ChannelIDs == nil && p.Exclude == nil && p.Include == nil
}

// GroupsPatch is a minimal delta for the whole runtime cache, keyed by group
// id.
type GroupsPatch map[string]*GroupPatch

// ListPatch is the delta produced by recompiling one per-group filter list,
// forwarded over the messaging channel.
type ListPatch struct {
	GroupID string          `json:"groupId"`
	Exclude *FiltersRuntime `json:"excludeFilters,omitempty"`
	Include *FiltersRuntime `json:"includeFilters,omitempty"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (p ListPatch) IsEmpty() bool {
	return p.Exclude.isEmpty() && p.Include.isEmpty()
}
