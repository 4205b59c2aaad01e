package match

import (
	"regexp"
	"strings"

	"github.com/foodguide/stallsync/internal/model"
)

var titleEpisodeRe = regexp.MustCompile(`\b(?:episode|ep)\.?\s*#?\s*(\d+(?:\.\d+)?)`)

// Input is what every rule sees for one stall/candidate pair.
type Input struct {
	Stall     model.StallRecord
	Candidate model.VideoCandidate
	// Title is the normalized candidate title; Words is its token set.
	Title string
	Words map[string]bool
}

// NewInput precomputes the normalized title for a pair.
func NewInput(stall model.StallRecord, c model.VideoCandidate) Input {
	title := Normalize(c.YoutubeTitle)
	words := make(map[string]bool)
	for _, w := range strings.Fields(title) {
		words[w] = true
	}
	return Input{Stall: stall, Candidate: c, Title: title, Words: words}
}

// Rule is one weighted scoring signal. Hits returns how many times the rule
// fires, so a word-per-hit rule and a yes/no rule share a shape.
type Rule struct {
	Name   string
	Weight int
	Hits   func(in Input) int
}

func boolHit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Rules is the scoring table, evaluated in order.
var Rules = []Rule{
	{Name: "episode", Weight: 10, Hits: episodeHit},
	{Name: "cuisine", Weight: 8, Hits: cuisineHit},
	{Name: "country", Weight: 6, Hits: func(in Input) int {
		return boolHit(in.Stall.Country != "" && in.Candidate.Country == in.Stall.Country)
	}},
	{Name: "not-members", Weight: 4, Hits: func(in Input) int {
		return boolHit(!in.Words["members"])
	}},
	{Name: "members", Weight: -4, Hits: func(in Input) int {
		return boolHit(in.Words["members"])
	}},
	{Name: "locale-sg", Weight: 2, Hits: func(in Input) int {
		return boolHit(in.Stall.Country == model.CountrySG && strings.Contains(in.Title, "singapore"))
	}},
	{Name: "locale-my", Weight: 2, Hits: func(in Input) int {
		return boolHit(in.Stall.Country == model.CountryMY && strings.Contains(in.Title, "malaysia"))
	}},
	{Name: "name-token", Weight: 14, Hits: nameTokenHits},
}

// episodeHit fires when the title names the stall's episode next to an
// "ep"/"episode" token.
func episodeHit(in Input) int {
	want := model.NormalizeEpisode(in.Stall.EpisodeNumber)
	if want == "" {
		return 0
	}
	for _, m := range titleEpisodeRe.FindAllStringSubmatch(strings.ToLower(in.Candidate.YoutubeTitle), -1) {
		if model.NormalizeEpisode(m[1]) == want {
			return 1
		}
	}
	return 0
}

func cuisineHit(in Input) int {
	for _, c := range []string{in.Stall.CuisineLabel, strings.ReplaceAll(in.Stall.Cuisine, "-", " ")} {
		if n := Normalize(c); n != "" && strings.Contains(in.Title, n) {
			return 1
		}
	}
	return 0
}

func nameTokenHits(in Input) int {
	n := 0
	for _, tok := range SignificantTokens(in.Stall.Name) {
		if in.Words[tok] {
			n++
		}
	}
	return n
}

// Score sums weight times hits over rules.
func Score(rules []Rule, in Input) int {
	total := 0
	for _, r := range rules {
		total += r.Weight * r.Hits(in)
	}
	return total
}
