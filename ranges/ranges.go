// Package ranges provides JSON-serializable closed numeric intervals that may
// be unbounded on either side, used to express badge version selections
// (subscriber months, bits tiers) compactly.
package ranges

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Range is a closed interval [From, To]. A nil bound means the interval is
// unbounded on that side. Ranges marshal as two-element JSON arrays, e.g.
// [3,12] or [24,null].
type Range struct {
	From *float64
	To   *float64
}

// New returns a Range with bounds normalized so that From <= To when both are
// present.
func New(from, to *float64) Range {
	if from != nil && to != nil && *from > *to {
		from, to = to, from
	}
	return Range{From: from, To: to}
}

// Bound returns a pointer to v, for building Range literals.
func Bound(v float64) *float64 { return &v }

func (r Range) from() float64 {
	if r.From == nil {
		return math.Inf(-1)
	}
	return *r.From
}

func (r Range) to() float64 {
	if r.To == nil {
		return math.Inf(1)
	}
	return *r.To
}

// Contains reports whether num falls within the range. Unbounded sides always
// satisfy their side.
func (r Range) Contains(num float64) bool {
	return r.from() <= num && num <= r.to()
}

// String renders the range as "from,to" with empty strings for unbounded
// sides. The format is stable and used for deduplication.
func (r Range) String() string {
	var b strings.Builder
	if r.From != nil {
		b.WriteString(strconv.FormatFloat(*r.From, 'f', -1, 64))
	}
	b.WriteByte(',')
	if r.To != nil {
		b.WriteString(strconv.FormatFloat(*r.To, 'f', -1, 64))
	}
	return b.String()
}

// Parse converts a "from,to" string back into a Range. Malformed parts are
// treated as unbounded.
func Parse(s string) Range {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Range{}
	}
	parseBound := func(part string) *float64 {
		if part == "" {
			return nil
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return Range{From: parseBound(parts[0]), To: parseBound(parts[1])}
}

// MarshalJSON encodes the range as [from|null, to|null].
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{r.From, r.To})
}

// UnmarshalJSON decodes a [from|null, to|null] pair, normalizing bound order.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode range: %w", err)
	}
	*r = New(pair[0], pair[1])
	return nil
}

// Sort orders ranges by (from, to) with nil treated as -/+ infinity. The input
// slice is not modified.
func Sort(rs []Range) []Range {
	sorted := make([]Range, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].from() != sorted[j].from() {
			return sorted[i].from() < sorted[j].from()
		}
		return sorted[i].to() < sorted[j].to()
	})
	return sorted
}

// Merge coalesces overlapping and touching ranges into a sorted, minimal,
// pairwise non-overlapping list. It is a pure function: the input is left
// untouched, and merging an already-merged list returns it unchanged.
func Merge(rs []Range) []Range {
	result := make([]Range, 0, len(rs))

	for _, r := range Sort(rs) {
		if len(result) == 0 || r.from() > result[len(result)-1].to() {
			result = append(result, r)
			continue
		}
		last := &result[len(result)-1]
		if r.to() > last.to() {
			last.To = r.To
		}
	}
	return result
}

// InRanges reports whether num falls within any of the ranges. The list is
// expected to be small (post-merge), so a linear scan is fine.
func InRanges(num float64, rs []Range) bool {
	for _, r := range rs {
		if r.Contains(num) {
			return true
		}
	}
	return false
}

// ToRangeArray validates and coerces an untrusted decoded JSON value (as
// produced by encoding/json into any) into a list of normalized ranges.
// Entries that are not two-element arrays of numbers, numeric strings, or
// nulls are dropped, and duplicates (by String) are removed.
func ToRangeArray(arr []any) []Range {
	out := make([]Range, 0, len(arr))
	seen := make(map[string]struct{})

	for _, value := range arr {
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		from, ok := toBound(pair[0])
		if !ok {
			continue
		}
		to, ok := toBound(pair[1])
		if !ok {
			continue
		}
		r := New(from, to)
		key := r.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// toBound coerces a decoded JSON scalar into an optional bound. nil means
// unbounded; numbers and numeric strings are accepted, anything else is
// rejected.
func toBound(v any) (*float64, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case float64:
		if math.IsNaN(val) {
			return nil, false
		}
		return &val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, false
		}
		return &f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, false
		}
		return &f, true
	default:
		return nil, false
	}
}
