// Package tags canonicalizes tag combinations into stable keys.
// Votes and leaderboards are partitioned by these keys, so normalization
// must be deterministic: the same set of tags in any order and casing
// always produces the same key.
package tags

import (
	"encoding/json"
	"sort"
	"strings"
)

// KeySeparator joins normalized tags into a tagsKey.
const KeySeparator = "|"

// Normalize trims, lowercases, drops empty entries and sorts the input.
// Duplicates are intentionally kept: "a,a,b" stays three elements. Normalize
// is idempotent - Normalize(Normalize(x)) == Normalize(x).
func Normalize(input []string) []string {
	out := make([]string, 0, len(input))
	for _, t := range input {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormalizeString splits a comma-separated tag string and normalizes it.
func NormalizeString(s string) []string {
	return Normalize(strings.Split(s, ","))
}

// Key builds the canonical tagsKey for an already-normalized tag list.
// An empty list yields "" which represents the global (untagged) combination.
func Key(normalized []string) string {
	return strings.Join(normalized, KeySeparator)
}

// Split is the inverse of Key for non-empty keys.
func Split(key string) []string {
	if key == "" {
		return []string{}
	}
	return strings.Split(key, KeySeparator)
}

// List accepts either a JSON array of strings or a single comma-separated
// string, matching what clients send in vote and leaderboard requests.
type List []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *List) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = strings.Split(s, ",")
	return nil
}

// Normalized returns the canonical form of the list.
func (l List) Normalized() []string {
	return Normalize(l)
}
