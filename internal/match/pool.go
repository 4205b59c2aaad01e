package match

import (
	"sort"

	"github.com/foodguide/stallsync/internal/model"
)

type entry struct {
	stallID   string
	candidate model.VideoCandidate
}

// Pools groups resolved stalls into candidate buckets.
type Pools struct {
	strict map[string][]entry // cuisine|episode|country
	loose  map[string][]entry // cuisine|episode
}

func strictKey(cuisine, episode string, country model.Country) string {
	return cuisine + "|" + model.NormalizeEpisode(episode) + "|" + string(country)
}

func looseKey(cuisine, episode string) string {
	return cuisine + "|" + model.NormalizeEpisode(episode)
}

// CandidateFrom turns a resolved stall into a pool entry.
func CandidateFrom(s model.StallRecord) model.VideoCandidate {
	return model.VideoCandidate{
		VideoID:      s.YoutubeVideoID,
		VideoURL:     model.WatchURL(s.YoutubeVideoID),
		YoutubeTitle: s.YoutubeTitle,
		Cuisine:      s.Cuisine,
		Country:      s.Country,
		Episode:      model.NormalizeEpisode(s.EpisodeNumber),
	}
}

// BuildPools indexes every stall that already has a video.
func BuildPools(stalls []model.StallRecord) Pools {
	p := Pools{strict: map[string][]entry{}, loose: map[string][]entry{}}
	for _, s := range stalls {
		if !s.HasVideo() || s.EpisodeNumber == "" {
			continue
		}
		e := entry{stallID: s.ID, candidate: CandidateFrom(s)}
		sk := strictKey(s.Cuisine, s.EpisodeNumber, s.Country)
		lk := looseKey(s.Cuisine, s.EpisodeNumber)
		p.strict[sk] = append(p.strict[sk], e)
		p.loose[lk] = append(p.loose[lk], e)
	}
	return p
}

// CandidatesFor returns the deduplicated pool for stall, widening from
// cuisine|episode|country to cuisine|episode when the strict bucket has
// nothing besides the stall itself. Output is sorted by video id.
func (p Pools) CandidatesFor(stall model.StallRecord) []model.VideoCandidate {
	cands := dedupe(p.strict[strictKey(stall.Cuisine, stall.EpisodeNumber, stall.Country)], stall.ID)
	if len(cands) == 0 {
		cands = dedupe(p.loose[looseKey(stall.Cuisine, stall.EpisodeNumber)], stall.ID)
	}
	return cands
}

func dedupe(entries []entry, self string) []model.VideoCandidate {
	byID := make(map[string]model.VideoCandidate, len(entries))
	for _, e := range entries {
		if self != "" && e.stallID == self {
			continue
		}
		c := e.candidate
		prev, ok := byID[c.VideoID]
		if !ok || (prev.YoutubeTitle == "" && c.YoutubeTitle != "") {
			byID[c.VideoID] = c
		}
	}
	out := make([]model.VideoCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })
	return out
}
