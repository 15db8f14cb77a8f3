// Package emote defines what an emote reference is: how raw link targets are
// classified and canonicalized, how occurrences are batched for a single
// lookup and what a lookup produces.
package emote

import "strings"

// Name is a canonical emote name, the key of one logical emote within a batch.
type Name string

const (
	separator = "-"

	prefixCommunity = "/r/"
	prefixUser      = "/u/"
)

// IsCandidate reports whether raw link target may reference an emote: it has
// to be site relative and must not point to a community or user profile.
func IsCandidate(raw string) bool {
	if len(raw) == 0 || !strings.HasPrefix(raw, "/") {
		return false
	}
	return !strings.HasPrefix(raw, prefixCommunity) && !strings.HasPrefix(raw, prefixUser)
}

// Canonical derives canonical name from raw link target. Returns false when
// target is not a candidate or canonical part is empty.
func Canonical(raw string) (Name, bool) {
	if !IsCandidate(raw) {
		return "", false
	}
	name, _, _ := strings.Cut(raw, separator)
	if len(name) == 0 {
		return "", false
	}
	return Name(name), true
}

// Flags returns non-empty separator delimited parts of raw target following
// canonical name, "/a-r-in" yields ["r", "in"].
func Flags(raw string) []string {
	_, rest, found := strings.Cut(raw, separator)
	if !found {
		return nil
	}
	var flags []string
	for f := range strings.SplitSeq(rest, separator) {
		if len(f) > 0 {
			flags = append(flags, f)
		}
	}
	return flags
}
