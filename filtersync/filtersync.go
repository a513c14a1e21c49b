// Package filtersync moves compiled filter state between the process holding
// storage access and the process running the evaluator. The Publisher watches
// the key-value store, recompiles changed records through a RuntimeCache, and
// posts minimal patches over a messaging channel; the Subscriber mirrors
// those patches into its own cache and bootstraps itself with a full snapshot
// on connect.
package filtersync

// Message types exchanged over the messaging channel.
const (
	// MsgTypePatch carries a group-keyed runtime patch.
	MsgTypePatch = "CHAT_FILTER_GROUPS_PATCH"
	// MsgTypeGroups carries a full runtime snapshot.
	MsgTypeGroups = "CHAT_FILTER_GROUPS"
	// MsgTypeGetGroups requests a full runtime snapshot.
	MsgTypeGetGroups = "GET_CHAT_FILTER_GROUPS"
)
