package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var episodePrefixRe = regexp.MustCompile(`(?i)^\s*(?:episode|ep)\.?\s*#?\s*`)

// NormalizeEpisode turns an episode cell into a comparison key. Integer-valued
// numbers collapse to integer text ("9.0" -> "9"); fractional numbers keep their
// fraction ("9.5"). Non-numeric text is returned trimmed.
func NormalizeEpisode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	stripped := episodePrefixRe.ReplaceAllString(s, "")
	f, err := strconv.ParseFloat(strings.TrimSpace(stripped), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
