package match

import (
	"github.com/foodguide/stallsync/internal/model"
)

// Resolution is a validated video for a stall.
type Resolution struct {
	StallID  string
	Slug     string
	VideoID  string
	VideoURL string
	Title    string
	Reason   string
	Score    int
}

// Matcher resolves stalls against pools built from the catalog and the
// channel's current upload map (video id to title).
type Matcher struct {
	pools   Pools
	uploads map[string]string
}

// NewMatcher builds pools from stalls.
func NewMatcher(stalls []model.StallRecord, uploads map[string]string) *Matcher {
	return &Matcher{pools: BuildPools(stalls), uploads: uploads}
}

// Resolve runs pool lookup, selection and feed validation for one stall.
func (m *Matcher) Resolve(stall model.StallRecord) (Resolution, error) {
	choice, err := ChooseBestCandidate(stall, m.pools.CandidatesFor(stall))
	if err != nil {
		return Resolution{}, err
	}
	if err := Validate(choice, m.uploads); err != nil {
		return Resolution{}, err
	}

	title := m.uploads[choice.Candidate.VideoID]
	if title == "" {
		title = choice.Candidate.YoutubeTitle
	}
	return Resolution{
		StallID:  stall.ID,
		Slug:     stall.Slug,
		VideoID:  choice.Candidate.VideoID,
		VideoURL: model.WatchURL(choice.Candidate.VideoID),
		Title:    title,
		Reason:   choice.Reason,
		Score:    choice.Score,
	}, nil
}
