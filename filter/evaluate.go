package filter

import (
	"strconv"
	"strings"

	"github.com/fractalo/chat-curator/ranges"
)

const (
	subscriberBadgeID = "subscriber"
	founderBadgeID    = "founder"
)

// ChatMessage is one parsed chat message record as supplied by the message
// source. Badges maps badge set ids to version strings. BadgeDynamicData
// carries numeric companions for badges whose version string does not encode
// the interesting number (subscriber and founder month counts).
//
// MessageBody is expected to be lowercased by the caller; keyword filters are
// stored lowercased and matched by plain substring containment. Username
// fields are matched as-is against the lowercased filter set, preserving the
// exact-case passthrough of display names.
type ChatMessage struct {
	ID               string             `json:"id,omitempty"`
	ChannelLogin     string             `json:"channelLogin,omitempty"`
	UserLogin        string             `json:"userLogin,omitempty"`
	UserDisplayName  string             `json:"userDisplayName,omitempty"`
	MessageBody      string             `json:"messageBody,omitempty"`
	Badges           map[string]string  `json:"badges,omitempty"`
	BadgeDynamicData map[string]float64 `json:"badgeDynamicData,omitempty"`
}

// Evaluate decides whether a chat message should be shown. Active groups
// scoped to the message's channel are applied in two passes: any matching
// exclude filter hides the message regardless of group order, then any
// matching include filter shows it. Messages matching neither are hidden.
func (c *RuntimeCache) Evaluate(msg ChatMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	applied := make([]*GroupRuntime, 0, len(c.groups))
	for _, group := range c.groups {
		if !group.IsActive {
			continue
		}
		if group.ChannelIDs != nil && (msg.ChannelLogin == "" || !group.ChannelIDs.Has(msg.ChannelLogin)) {
			continue
		}
		applied = append(applied, group)
	}

	for _, group := range applied {
		if matchesFilter(msg, group.Exclude) {
			return false
		}
	}
	for _, group := range applied {
		if matchesFilter(msg, group.Include) {
			return true
		}
	}
	return false
}

// matchesFilter reports whether any of the independent match subroutines
// fires for the given inclusion side.
func matchesFilter(msg ChatMessage, filters *FiltersRuntime) bool {
	if filters == nil {
		return false
	}
	return matchesUsernameFilter(msg, filters) ||
		matchesNoSubscriberBadgeFilter(msg, filters) ||
		matchesBadgeFilter(msg, filters) ||
		matchesKeywordFilter(msg, filters)
}

func matchesUsernameFilter(msg ChatMessage, filters *FiltersRuntime) bool {
	if filters.Usernames == nil {
		return false
	}
	if msg.UserLogin != "" && filters.Usernames.Has(msg.UserLogin) {
		return true
	}
	if msg.UserDisplayName != "" && filters.Usernames.Has(msg.UserDisplayName) {
		return true
	}
	return false
}

func matchesNoSubscriberBadgeFilter(msg ChatMessage, filters *FiltersRuntime) bool {
	if filters.SubscriberBadge == nil || !filters.SubscriberBadge.SelectNoSubscriberBadge {
		return false
	}
	if msg.Badges == nil {
		return false
	}
	_, hasSubscriberBadge := msg.Badges[subscriberBadgeID]
	return !hasSubscriberBadge
}

// subscriberBadgeVersion is the decoded form of a subscriber badge version
// string: up to three characters the whole string is a months count at tier 1,
// otherwise the first character is the tier digit and the rest the months.
type subscriberBadgeVersion struct {
	tier   Tier
	months string
}

func parseSubscriberBadgeVersion(version string) (subscriberBadgeVersion, bool) {
	if version == "" {
		return subscriberBadgeVersion{}, false
	}
	if len(version) <= 3 {
		return subscriberBadgeVersion{tier: "1", months: version}, true
	}
	if isSubscriberTier(version[:1]) {
		return subscriberBadgeVersion{tier: Tier(version[:1]), months: version[1:]}, true
	}
	return subscriberBadgeVersion{}, false
}

func matchesBadgeFilter(msg ChatMessage, filters *FiltersRuntime) bool {
	if msg.Badges == nil || filters.Badges == nil {
		return false
	}

	for badgeID, version := range msg.Badges {
		var (
			selection       *GeneralBadgeSelection
			selectionKnown  bool
			versionStr      string
			versionNum      float64
			versionNumKnown bool
		)

		if badgeID == subscriberBadgeID {
			sb := filters.SubscriberBadge
			if sb == nil || (!sb.AllTiers && sb.Selections == nil) {
				continue
			}
			if sb.AllTiers {
				return true
			}
			parsed, ok := parseSubscriberBadgeVersion(version)
			if !ok {
				continue
			}
			selection, selectionKnown = sb.Selections[parsed.tier]
			versionStr = parsed.months
			versionNum, versionNumKnown = msg.BadgeDynamicData[badgeID]
			if !versionNumKnown {
				versionNum, versionNumKnown = parseVersionNumber(versionStr)
			}
		} else {
			selection, selectionKnown = (*filters.Badges)[badgeID]
			versionStr = version
			if badgeID == founderBadgeID {
				versionNum, versionNumKnown = msg.BadgeDynamicData[badgeID]
			} else {
				versionNum, versionNumKnown = parseVersionNumber(versionStr)
			}
		}

		if !selectionKnown {
			continue
		}
		if selection == nil {
			return true
		}
		if versionStr != "" && selection.Versions.Has(versionStr) {
			return true
		}
		if versionNumKnown && ranges.InRanges(versionNum, selection.VersionRanges) {
			return true
		}
	}
	return false
}

func parseVersionNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func matchesKeywordFilter(msg ChatMessage, filters *FiltersRuntime) bool {
	if msg.MessageBody == "" || filters.Keywords == nil {
		return false
	}
	for keyword := range *filters.Keywords {
		if strings.Contains(msg.MessageBody, keyword) {
			return true
		}
	}
	return false
}
