package filter

import (
	"strings"

	"github.com/fractalo/chat-curator/ranges"
)

// usernameRuntime builds lowercased username sets split by inclusion side,
// ignoring inactive entries and entries of a foreign type.
func usernameRuntime(list List) (exclude, include StringSet) {
	exclude, include = NewStringSet(), NewStringSet()
	for _, f := range list {
		uf, ok := f.(UsernameFilter)
		if !ok || !uf.IsActive {
			continue
		}
		usernames := exclude
		if uf.IsIncluded {
			usernames = include
		}
		usernames.Add(strings.ToLower(uf.Username))
	}
	return exclude, include
}

// keywordRuntime builds lowercased keyword sets split by inclusion side.
func keywordRuntime(list List) (exclude, include StringSet) {
	exclude, include = NewStringSet(), NewStringSet()
	for _, f := range list {
		kf, ok := f.(KeywordFilter)
		if !ok || !kf.IsActive {
			continue
		}
		keywords := exclude
		if kf.IsIncluded {
			keywords = include
		}
		keywords.Add(strings.ToLower(kf.Keyword))
	}
	return exclude, include
}

// badgeSide accumulates the badge runtime for one inclusion side.
type badgeSide struct {
	badges     BadgeSelectionMap
	subscriber *SubscriberBadgeSelection
}

func newBadgeSide() *badgeSide {
	return &badgeSide{
		badges:     make(BadgeSelectionMap),
		subscriber: &SubscriberBadgeSelection{},
	}
}

func (s *badgeSide) addGeneral(f GeneralBadgeFilter) {
	if sel, ok := s.badges[f.SetID]; ok && sel == nil {
		// "match any" already set for this badge id; further entries are
		// ignored (first null wins within one compile pass).
		return
	}
	if f.Versions == nil && f.VersionRanges == nil {
		s.badges[f.SetID] = nil
		return
	}
	sel, ok := s.badges[f.SetID]
	if !ok {
		sel = newGeneralBadgeSelection()
		s.badges[f.SetID] = sel
	}
	for _, version := range f.Versions {
		sel.Versions.Add(version)
	}
	sel.VersionRanges = append(sel.VersionRanges, f.VersionRanges...)
}

func (s *badgeSide) addSubscriber(f SubscriberBadgeFilter) {
	sb := s.subscriber

	if !f.HasSubscriberBadge {
		sb.SelectNoSubscriberBadge = true
		return
	}
	if sb.AllTiers {
		return
	}
	if f.Tiers == nil && f.Months == nil && f.MonthRanges == nil {
		sb.AllTiers = true
		sb.Selections = nil
		return
	}
	if sb.Selections == nil {
		sb.Selections = make(map[Tier]*GeneralBadgeSelection)
	}

	tiers := f.Tiers
	if tiers == nil {
		tiers = SubscriberTiers
	}
	for _, tier := range tiers {
		if sel, ok := sb.Selections[tier]; ok && sel == nil {
			continue
		}
		if f.Months == nil && f.MonthRanges == nil {
			sb.Selections[tier] = nil
			continue
		}
		sel, ok := sb.Selections[tier]
		if !ok {
			sel = newGeneralBadgeSelection()
			sb.Selections[tier] = sel
		}
		for _, month := range f.Months {
			sel.Versions.Add(month)
		}
		sel.VersionRanges = append(sel.VersionRanges, f.MonthRanges...)
	}
}

func (s *badgeSide) mergeVersionRanges() {
	merge := func(sel *GeneralBadgeSelection) {
		if sel != nil {
			sel.VersionRanges = ranges.Merge(sel.VersionRanges)
		}
	}
	for _, sel := range s.badges {
		merge(sel)
	}
	for _, sel := range s.subscriber.Selections {
		merge(sel)
	}
}

// badgeRuntime builds the compiled badge selections for both inclusion sides,
// with merged version ranges.
func badgeRuntime(list List) (exclude, include *badgeSide) {
	exclude, include = newBadgeSide(), newBadgeSide()

	for _, f := range list {
		if !f.Common().IsActive {
			continue
		}
		side := exclude
		if f.Common().IsIncluded {
			side = include
		}
		switch bf := f.(type) {
		case GeneralBadgeFilter:
			side.addGeneral(bf)
		case SubscriberBadgeFilter:
			side.addSubscriber(bf)
		}
	}

	exclude.mergeVersionRanges()
	include.mergeVersionRanges()
	return exclude, include
}

// compileList builds the per-side runtime for one filter list of the given
// type. Unknown types yield empty runtimes.
func compileList(typ Type, list List) (exclude, include *FiltersRuntime) {
	exclude, include = &FiltersRuntime{}, &FiltersRuntime{}

	switch typ {
	case TypeUsername:
		ex, in := usernameRuntime(list)
		exclude.Usernames, include.Usernames = &ex, &in
	case TypeKeyword:
		ex, in := keywordRuntime(list)
		exclude.Keywords, include.Keywords = &ex, &in
	case TypeBadge:
		ex, in := badgeRuntime(list)
		exclude.Badges, include.Badges = &ex.badges, &in.badges
		exclude.SubscriberBadge, include.SubscriberBadge = ex.subscriber, in.subscriber
	}
	return exclude, include
}
