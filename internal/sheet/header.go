package sheet

import (
	"fmt"
	"strings"
)

// Column names used in errors and diagnostics.
const (
	ColEpisode         = "episode number"
	ColPlace           = "place"
	ColName            = "name"
	ColAddress         = "address"
	ColDish            = "dish name"
	ColPrice           = "price"
	ColRatingOriginal  = "rating (original)"
	ColRatingModerated = "rating (moderated)"
	ColVideoLink       = "youtube video link"
	ColAwards          = "awards"
	ColOpening         = "opening times"
)

// MissingColumnError is a configuration error: a required header is absent.
type MissingColumnError struct {
	Column string
	Header []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("sheet: required column %q not found in header %q", e.Column, e.Header)
}

// Columns holds resolved header positions. Absent optional columns are -1.
type Columns struct {
	Episode         int
	Place           int
	Name            int
	Address         int
	Dish            int
	Price           int
	RatingOriginal  int
	RatingModerated int
	VideoLink       int
	Awards          int
	Opening         int
}

type columnRule struct {
	name     string
	required bool
	match    func(h string) bool
	slot     func(c *Columns) *int
}

func has(h string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(h, s) {
			return true
		}
	}
	return false
}

// Rules run in order and each header cell is claimed by at most one column,
// so "dish name" goes to dish before name looks at it.
var columnRules = []columnRule{
	{ColEpisode, true, func(h string) bool {
		return has(h, "episode number") || h == "episode" || h == "ep" || h == "ep."
	}, func(c *Columns) *int { return &c.Episode }},
	{ColRatingOriginal, true, func(h string) bool {
		return has(h, "rating") && has(h, "original")
	}, func(c *Columns) *int { return &c.RatingOriginal }},
	{ColRatingModerated, false, func(h string) bool {
		return has(h, "rating") && has(h, "moderated", "adjusted")
	}, func(c *Columns) *int { return &c.RatingModerated }},
	{ColVideoLink, false, func(h string) bool {
		return has(h, "youtube", "video") && !has(h, "title")
	}, func(c *Columns) *int { return &c.VideoLink }},
	{ColAwards, false, func(h string) bool {
		return has(h, "award")
	}, func(c *Columns) *int { return &c.Awards }},
	{ColOpening, false, func(h string) bool {
		return has(h, "opening", "hours")
	}, func(c *Columns) *int { return &c.Opening }},
	{ColDish, false, func(h string) bool {
		return has(h, "dish")
	}, func(c *Columns) *int { return &c.Dish }},
	{ColPrice, false, func(h string) bool {
		return has(h, "price")
	}, func(c *Columns) *int { return &c.Price }},
	{ColAddress, true, func(h string) bool {
		return has(h, "address")
	}, func(c *Columns) *int { return &c.Address }},
	{ColName, true, func(h string) bool {
		return has(h, "name")
	}, func(c *Columns) *int { return &c.Name }},
	{ColPlace, false, func(h string) bool {
		return has(h, "place", "location")
	}, func(c *Columns) *int { return &c.Place }},
}

// NormalizeHeader lower-cases a header cell and collapses whitespace.
func NormalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ResolveHeader locates columns by predicate rather than position.
func ResolveHeader(header []string) (Columns, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = NormalizeHeader(h)
	}

	var cols Columns
	claimed := make([]bool, len(norm))
	for _, rule := range columnRules {
		idx := -1
		for i, h := range norm {
			if !claimed[i] && h != "" && rule.match(h) {
				idx = i
				claimed[i] = true
				break
			}
		}
		if idx < 0 && rule.required {
			return Columns{}, &MissingColumnError{Column: rule.name, Header: header}
		}
		*rule.slot(&cols) = idx
	}
	return cols, nil
}

// cell returns the trimmed value at idx, or "" when idx is absent or out of range.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
