package filter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fractalo/chat-curator/kvstore"
)

// Storage keys. Filter lists are stored per group and type under
// "chatFilters.<groupId>.<type>".
const (
	GroupsKey        = "chatFilterGroups"
	filtersKeyPrefix = "chatFilters"
)

// ListKey returns the storage key of one per-group per-type filter list.
func ListKey(groupID string, typ Type) string {
	return strings.Join([]string{filtersKeyPrefix, groupID, string(typ)}, ".")
}

// ParseListKey splits a storage key back into group id and filter type.
func ParseListKey(key string) (groupID string, typ Type, ok bool) {
	segments := strings.Split(key, ".")
	if len(segments) != 3 || segments[0] != filtersKeyPrefix {
		return "", "", false
	}
	for _, t := range Types {
		if string(t) == segments[2] {
			return segments[1], t, true
		}
	}
	return "", "", false
}

// GetGroups reads the persisted group record. Malformed or missing values are
// treated as an empty record, never an error.
func GetGroups(ctx context.Context, store kvstore.Store) (Groups, error) {
	raw, err := store.Get(ctx, GroupsKey)
	if err != nil {
		return nil, err
	}
	return DecodeGroups(raw), nil
}

// SetGroups replaces the persisted group record.
func SetGroups(ctx context.Context, store kvstore.Store, groups Groups) error {
	return store.Set(ctx, GroupsKey, groups)
}

// GetList reads one per-group per-type filter list. Malformed or missing
// values are treated as an empty list, never an error.
func GetList(ctx context.Context, store kvstore.Store, groupID string, typ Type) (List, error) {
	raw, err := store.Get(ctx, ListKey(groupID, typ))
	if err != nil {
		return nil, err
	}
	return DecodeList(raw, typ), nil
}

// SetList replaces one per-group per-type filter list as a whole.
func SetList(ctx context.Context, store kvstore.Store, groupID string, typ Type, list List) error {
	return store.Set(ctx, ListKey(groupID, typ), list)
}

// RemoveLists deletes all filter lists of a group.
func RemoveLists(ctx context.Context, store kvstore.Store, groupID string) error {
	keys := make([]string, 0, len(Types))
	for _, typ := range Types {
		keys = append(keys, ListKey(groupID, typ))
	}
	return store.Delete(ctx, keys...)
}

// DecodeGroups decodes a raw group record, degrading to empty on malformed
// data.
func DecodeGroups(raw json.RawMessage) Groups {
	if len(raw) == 0 {
		return Groups{}
	}
	var groups Groups
	if err := json.Unmarshal(raw, &groups); err != nil {
		return Groups{}
	}
	return groups
}

// DecodeList decodes a raw filter list of the given type. Entries that do not
// decode as the expected filter kind are dropped; a malformed record as a
// whole degrades to an empty list.
func DecodeList(raw json.RawMessage, typ Type) List {
	list := List{}
	if len(raw) == 0 {
		return list
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return list
	}
	for id, entry := range entries {
		if f, ok := decodeFilter(entry, typ); ok {
			list[id] = f
		}
	}
	return list
}

// decodeFilter decodes one raw filter of an expected type, dispatching badge
// filters on their badgeType discriminant.
func decodeFilter(raw json.RawMessage, typ Type) (Filter, bool) {
	switch typ {
	case TypeUsername:
		var f UsernameFilter
		if json.Unmarshal(raw, &f) != nil || f.Username == "" {
			return nil, false
		}
		return f, true
	case TypeKeyword:
		var f KeywordFilter
		if json.Unmarshal(raw, &f) != nil || f.Keyword == "" {
			return nil, false
		}
		return f, true
	case TypeBadge:
		var probe struct {
			BadgeType string `json:"badgeType"`
		}
		if json.Unmarshal(raw, &probe) != nil {
			return nil, false
		}
		switch probe.BadgeType {
		case badgeTypeGeneral:
			var f GeneralBadgeFilter
			if json.Unmarshal(raw, &f) != nil || f.SetID == "" {
				return nil, false
			}
			return f, true
		case badgeTypeSubscriber:
			var f SubscriberBadgeFilter
			if json.Unmarshal(raw, &f) != nil {
				return nil, false
			}
			return f, true
		}
	}
	return nil, false
}
