package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fractalo/chat-curator/kvstore"
	"github.com/fractalo/chat-curator/ranges"
)

// ExportedGroup is the download/upload representation of one filter group:
// the group metadata (without the derived filterCount) plus all of its
// filters flattened into one list.
type ExportedGroup struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ModifiedAt int64    `json:"modifiedAt"`
	IsActive   bool     `json:"isActive"`
	IsGlobal   bool     `json:"isGlobal"`
	ChannelIDs []string `json:"channelIds,omitempty"`
	Filters    []Filter `json:"filters"`
}

// Export collects the given groups and their filter lists into the exported
// representation.
func Export(ctx context.Context, store kvstore.Store, groups []Group) ([]ExportedGroup, error) {
	exported := make([]ExportedGroup, 0, len(groups))
	for _, group := range groups {
		filters := make([]Filter, 0)
		for _, typ := range Types {
			list, err := GetList(ctx, store, group.ID, typ)
			if err != nil {
				return nil, fmt.Errorf("export group %s: %w", group.ID, err)
			}
			for _, f := range list {
				filters = append(filters, f)
			}
		}
		exported = append(exported, ExportedGroup{
			ID:         group.ID,
			Name:       group.Name,
			ModifiedAt: group.ModifiedAt,
			IsActive:   group.IsActive,
			IsGlobal:   group.IsGlobal,
			ChannelIDs: group.ChannelIDs,
			Filters:    filters,
		})
	}
	return exported, nil
}

// ParseImportedGroups validates an untrusted exported-groups JSON document.
// Duplicate or missing ids (both group and filter) are replaced with fresh
// UUIDs; groups lacking a usable name or isGlobal flag AND holding zero valid
// filters are dropped; invalid filter entries are silently filtered out
// rather than rejecting the whole group. The document as a whole must be a
// JSON array.
func ParseImportedGroups(data []byte) ([]ExportedGroup, error) {
	var rawGroups []any
	if err := json.Unmarshal(data, &rawGroups); err != nil {
		return nil, fmt.Errorf("imported data is not a JSON array: %w", err)
	}

	groupIDs := make(map[string]struct{})
	sequence := 1
	groups := make([]ExportedGroup, 0, len(rawGroups))

	for _, rawGroup := range rawGroups {
		obj, ok := rawGroup.(map[string]any)
		if !ok {
			continue
		}

		filters := validFilters(obj["filters"])

		name, _ := toStringSafe(obj["name"])
		name = strings.TrimSpace(name)
		isGlobal, hasIsGlobal := toBool(obj["isGlobal"])

		if (!hasIsGlobal || name == "") && len(filters) == 0 {
			continue
		}

		id, _ := toStringSafe(obj["id"])
		id = strings.TrimSpace(id)
		if _, dup := groupIDs[id]; id == "" || dup {
			id = uuid.New().String()
		}
		groupIDs[id] = struct{}{}

		if name == "" {
			name = fmt.Sprintf("Group %d", sequence)
			sequence++
		}
		if !hasIsGlobal {
			isGlobal = true
		}

		modifiedAt, _ := toTimestampSafe(obj["modifiedAt"])
		isActive, _ := toBool(obj["isActive"])
		channelIDs := toStringSlice(obj["channelIds"], nil)

		groups = append(groups, ExportedGroup{
			ID:         id,
			Name:       name,
			ModifiedAt: modifiedAt,
			IsActive:   isActive,
			IsGlobal:   isGlobal,
			ChannelIDs: channelIDs,
			Filters:    filters,
		})
	}
	return groups, nil
}

// validFilters extracts the valid filters from an untrusted value that may be
// either a record keyed by id or a plain array.
func validFilters(value any) []Filter {
	var arr []any
	switch v := value.(type) {
	case map[string]any:
		arr = make([]any, 0, len(v))
		for _, item := range v {
			arr = append(arr, item)
		}
	case []any:
		arr = v
	}

	filterIDs := make(map[string]struct{})
	filters := make([]Filter, 0, len(arr))

	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		isActive, okActive := toBool(obj["isActive"])
		isIncluded, okIncluded := toBool(obj["isIncluded"])
		if !okActive || !okIncluded {
			continue
		}

		id, _ := toStringSafe(obj["id"])
		id = strings.TrimSpace(id)
		if _, dup := filterIDs[id]; id == "" || dup {
			id = uuid.New().String()
		}
		filterIDs[id] = struct{}{}

		modifiedAt, _ := toTimestampSafe(obj["modifiedAt"])
		base := Base{ID: id, IsActive: isActive, IsIncluded: isIncluded, ModifiedAt: modifiedAt}

		typ, _ := toStringSafe(obj["type"])
		badgeType, _ := toStringSafe(obj["badgeType"])

		var f Filter
		switch {
		case typ == string(TypeUsername):
			f = validUsernameFilter(base, obj)
		case typ == string(TypeKeyword):
			f = validKeywordFilter(base, obj)
		case typ == string(TypeBadge) && badgeType == badgeTypeGeneral:
			f = validGeneralBadgeFilter(base, obj)
		case typ == string(TypeBadge) && badgeType == badgeTypeSubscriber:
			f = validSubscriberBadgeFilter(base, obj)
		}
		if f != nil {
			filters = append(filters, f)
		}
	}
	return filters
}

func validUsernameFilter(base Base, obj map[string]any) Filter {
	username, _ := toStringSafe(obj["username"])
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	description, _ := toStringSafe(obj["description"])
	return UsernameFilter{Base: base, Username: username, Description: description}
}

func validKeywordFilter(base Base, obj map[string]any) Filter {
	keyword, _ := toStringSafe(obj["keyword"])
	if keyword == "" {
		return nil
	}
	return KeywordFilter{Base: base, Keyword: keyword}
}

func validGeneralBadgeFilter(base Base, obj map[string]any) Filter {
	setID, _ := toStringSafe(obj["setId"])
	setID = strings.TrimSpace(setID)
	if setID == "" {
		return nil
	}
	f := GeneralBadgeFilter{Base: base, SetID: setID}
	if versions, ok := obj["versions"].([]any); ok {
		f.Versions = toStringSlice(versions, nil)
	}
	if versionRanges, ok := obj["versionRanges"].([]any); ok {
		f.VersionRanges = ranges.ToRangeArray(versionRanges)
	}
	return f
}

func validSubscriberBadgeFilter(base Base, obj map[string]any) Filter {
	hasSubscriberBadge, ok := toBool(obj["hasSubscriberBadge"])
	if !ok {
		return nil
	}
	f := SubscriberBadgeFilter{Base: base, HasSubscriberBadge: hasSubscriberBadge}
	if tiers, ok := obj["tiers"].([]any); ok {
		// A present-but-empty tiers list stays empty: it selects no tiers,
		// unlike a missing list which means all tiers.
		f.Tiers = make([]Tier, 0)
		for _, t := range toStringSlice(tiers, isSubscriberTier) {
			f.Tiers = append(f.Tiers, Tier(t))
		}
	}
	if months, ok := obj["months"].([]any); ok {
		f.Months = toStringSlice(months, isNonNegativeNumber)
	}
	if monthRanges, ok := obj["monthRanges"].([]any); ok {
		f.MonthRanges = ranges.ToRangeArray(monthRanges)
	}
	return f
}

func isNonNegativeNumber(s string) bool {
	n, err := strconv.ParseFloat(s, 64)
	return err == nil && n >= 0
}
