// Package match resolves a video for a stall that has none by scoring the
// videos already attached to its cuisine/episode neighbours.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/foodguide/stallsync/internal/model"
)

// Normalize applies NFKD, strips diacritics, lower-cases and collapses every
// non-alphanumeric run to one space.
func Normalize(s string) string {
	return model.Squash(s, " ")
}

var stopWords = map[string]bool{
	"noodle": true, "noodles": true, "singapore": true, "malaysia": true,
	"thailand": true, "bangkok": true, "penang": true, "kuala": true, "lumpur": true,
	"street": true, "road": true, "hawker": true, "centre": true, "center": true,
	"market": true, "food": true, "stall": true, "shop": true, "house": true,
	"restaurant": true, "kitchen": true, "eating": true, "coffee": true,
	"original": true, "famous": true, "best": true, "with": true, "from": true,
	"rice": true, "soup": true,
}

// SignificantTokens returns the distinct normalized tokens of name that are
// at least four runes long and not generic cuisine or geography words.
func SignificantTokens(name string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range strings.Fields(Normalize(name)) {
		if utf8.RuneCountInString(tok) < 4 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// IsMembersOnly reports whether a title marks a channel-members upload.
func IsMembersOnly(title string) bool {
	for _, tok := range strings.Fields(Normalize(title)) {
		if tok == "members" {
			return true
		}
	}
	return false
}
