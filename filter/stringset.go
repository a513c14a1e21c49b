package filter

import (
	"encoding/json"
	"sort"
)

// StringSet is a set of strings that marshals as a sorted JSON array. A nil
// set means "unset" and is distinct from an empty set.
type StringSet map[string]struct{}

// NewStringSet builds a set from values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts value into the set.
func (s StringSet) Add(value string) { s[value] = struct{}{} }

// Has reports membership.
func (s StringSet) Has(value string) bool {
	_, ok := s[value]
	return ok
}

// Values returns the members in sorted order.
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two sets have identical members. A nil set never
// equals anything, including another nil set; this keeps "unset" from being
// conflated with "empty" when diffing cached state.
func (s StringSet) Equal(other StringSet) bool {
	if s == nil || other == nil {
		return false
	}
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}
