package match

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/model"
)

// Selection reasons.
const (
	ReasonSingle = "single-candidate"
	ReasonScored = "scored"
)

var (
	// ErrNoCandidates means the stall's bucket holds no other resolved video.
	ErrNoCandidates = eris.New("match: no candidates")
	// ErrNotInChannelFeed means the chosen id is absent from the channel uploads.
	ErrNotInChannelFeed = eris.New("match: not found in channel feed")
)

// AmbiguousMatchError is returned when the top two candidates score equally.
type AmbiguousMatchError struct {
	Slug     string
	Score    int
	VideoIDs []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("match: %s: ambiguous candidates %v tied at score %d", e.Slug, e.VideoIDs, e.Score)
}

// Scored is a candidate with its score.
type Scored struct {
	Candidate model.VideoCandidate
	Score     int
	Members   bool
}

// Choice is the accepted candidate for a stall.
type Choice struct {
	Candidate model.VideoCandidate
	Reason    string
	Score     int
}

// Rank scores candidates and orders them by score, then non-members uploads
// first, then video id.
func Rank(stall model.StallRecord, cands []model.VideoCandidate) []Scored {
	ranked := make([]Scored, len(cands))
	for i, c := range cands {
		ranked[i] = Scored{
			Candidate: c,
			Score:     Score(Rules, NewInput(stall, c)),
			Members:   IsMembersOnly(c.YoutubeTitle),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Members != b.Members {
			return !a.Members
		}
		return a.Candidate.VideoID < b.Candidate.VideoID
	})
	return ranked
}

// ChooseBestCandidate picks the candidate for stall or fails explicitly: no
// candidates, or a tie at the top.
func ChooseBestCandidate(stall model.StallRecord, cands []model.VideoCandidate) (Choice, error) {
	switch len(cands) {
	case 0:
		return Choice{}, eris.Wrapf(ErrNoCandidates, "stall %s", stall.Slug)
	case 1:
		return Choice{Candidate: cands[0], Reason: ReasonSingle}, nil
	}

	ranked := Rank(stall, cands)
	if ranked[0].Score == ranked[1].Score {
		ids := []string{ranked[0].Candidate.VideoID}
		for _, r := range ranked[1:] {
			if r.Score != ranked[0].Score {
				break
			}
			ids = append(ids, r.Candidate.VideoID)
		}
		return Choice{}, &AmbiguousMatchError{Slug: stall.Slug, Score: ranked[0].Score, VideoIDs: ids}
	}
	return Choice{Candidate: ranked[0].Candidate, Reason: ReasonScored, Score: ranked[0].Score}, nil
}

// Validate rejects a choice whose video is not in the channel's uploads.
func Validate(c Choice, uploads map[string]string) error {
	if _, ok := uploads[c.Candidate.VideoID]; !ok {
		return eris.Wrapf(ErrNotInChannelFeed, "video %s", c.Candidate.VideoID)
	}
	return nil
}
