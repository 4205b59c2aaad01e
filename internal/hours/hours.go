// Package hours derives meal-time categories from free-text opening times.
package hours

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Categories in display order.
const (
	Breakfast = "breakfast"
	Lunch     = "lunch"
	Dinner    = "dinner"
	Supper    = "supper"
)

// All lists every category.
var All = []string{Breakfast, Lunch, Dinner, Supper}

// window is a half-open span in minutes from midnight; end may exceed 1440.
type window struct {
	name       string
	start, end int
}

var windows = []window{
	{Breakfast, 7 * 60, 10 * 60},
	{Lunch, 11*60 + 30, 14 * 60},
	{Dinner, 18 * 60, 20*60 + 30},
	{Supper, 22 * 60, 26 * 60},
}

// Classifier maps opening times to categories.
type Classifier interface {
	Classify(ctx context.Context, openingTimes string) ([]string, error)
}

var (
	clockRe = `(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?`
	rangeRe = regexp.MustCompile(clockRe + `\s*(?:-|–|to|till|until)\s*` + clockRe)
	allDay  = regexp.MustCompile(`24\s*(?:hours|hrs|h\b)|24/7|open all day`)
)

// Rules is the deterministic classifier.
type Rules struct{}

// Classify never fails; text with no recognizable range yields nil.
func (Rules) Classify(_ context.Context, openingTimes string) ([]string, error) {
	return Parse(openingTimes), nil
}

// Parse finds every time range in s and returns the categories they overlap.
func Parse(s string) []string {
	s = strings.ToLower(s)
	if allDay.MatchString(s) {
		return append([]string(nil), All...)
	}

	hit := map[string]bool{}
	for _, m := range rangeRe.FindAllStringSubmatch(s, -1) {
		start, end, ok := span(m[1:4], m[4:7])
		if !ok {
			continue
		}
		for _, w := range windows {
			if overlaps(start, end, w) {
				hit[w.name] = true
			}
		}
	}
	var out []string
	for _, c := range All {
		if hit[c] {
			out = append(out, c)
		}
	}
	return out
}

func overlaps(start, end int, w window) bool {
	// Also test the range shifted a day back so early-morning spans reach
	// the overnight supper window.
	for _, shift := range []int{0, 24 * 60} {
		if start+shift < w.end && w.start < end+shift {
			return true
		}
	}
	return false
}

// span converts two clock matches (hour, minute, meridiem) into minutes.
func span(a, b []string) (int, int, bool) {
	endMer := meridiem(b[2])
	startMer := meridiem(a[2])

	end, ok := minutes(b[0], b[1], endMer)
	if !ok {
		return 0, 0, false
	}
	if startMer == "" && endMer != "" {
		// "11-2pm" means 11am; "6-10pm" means 6pm.
		if guess, ok := minutes(a[0], a[1], endMer); ok && guess < end {
			startMer = endMer
		} else {
			startMer = "am"
		}
	}
	start, ok := minutes(a[0], a[1], startMer)
	if !ok {
		return 0, 0, false
	}
	if end <= start {
		end += 24 * 60
	}
	return start, end, true
}

func meridiem(s string) string {
	return strings.ReplaceAll(s, ".", "")
}

func minutes(h, m, mer string) (int, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil || hour > 24 {
		return 0, false
	}
	minute := 0
	if m != "" {
		if minute, err = strconv.Atoi(m); err != nil || minute > 59 {
			return 0, false
		}
	}
	switch mer {
	case "am":
		if hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	}
	return hour*60 + minute, true
}
