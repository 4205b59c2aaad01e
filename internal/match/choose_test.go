package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodguide/stallsync/internal/model"
)

func cand(id, title string) model.VideoCandidate {
	return model.VideoCandidate{
		VideoID: id, VideoURL: model.WatchURL(id), YoutubeTitle: title,
		Cuisine: "hawker-food", Country: model.CountrySG, Episode: "13",
	}
}

func TestChooseBestCandidate_NameDominates(t *testing.T) {
	t.Parallel()
	stall := hawkerStall()
	good := cand("aaaaaaaaaa1", "Swee Guan Hokkien Mee Review Ep 13")
	bad := cand("aaaaaaaaaa0", "Random Unrelated Video Ep 13")

	goodScore := Score(Rules, NewInput(stall, good))
	badScore := Score(Rules, NewInput(stall, bad))
	assert.Greater(t, goodScore, badScore)

	choice, err := ChooseBestCandidate(stall, []model.VideoCandidate{bad, good})
	require.NoError(t, err)
	assert.Equal(t, good.VideoID, choice.Candidate.VideoID)
	assert.Equal(t, ReasonScored, choice.Reason)
	assert.Equal(t, goodScore, choice.Score)
}

func TestChooseBestCandidate_TieRejected(t *testing.T) {
	t.Parallel()
	stall := hawkerStall()
	a := cand("bbbbbbbbbb1", "Hawker Food Ep 13")
	b := cand("bbbbbbbbbb2", "Hawker Food Ep 13")

	_, err := ChooseBestCandidate(stall, []model.VideoCandidate{a, b})
	require.Error(t, err)

	var amb *AmbiguousMatchError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, stall.Slug, amb.Slug)
	assert.Equal(t, []string{a.VideoID, b.VideoID}, amb.VideoIDs)
}

func TestChooseBestCandidate_Single(t *testing.T) {
	t.Parallel()
	only := cand("ccccccccccc", "anything")
	choice, err := ChooseBestCandidate(hawkerStall(), []model.VideoCandidate{only})
	require.NoError(t, err)
	assert.Equal(t, ReasonSingle, choice.Reason)
	assert.Equal(t, only, choice.Candidate)
}

func TestChooseBestCandidate_None(t *testing.T) {
	t.Parallel()
	_, err := ChooseBestCandidate(hawkerStall(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCandidates))
	assert.Contains(t, err.Error(), "swee-guan-hokkien-mee")
}

func TestRank_Order(t *testing.T) {
	t.Parallel()
	stall := hawkerStall()
	ranked := Rank(stall, []model.VideoCandidate{
		cand("ddddddddd03", "[members] Ep 13 Hawker Food Swee"),
		cand("ddddddddd02", "Ep 13 Hawker Food"),
		cand("ddddddddd01", "Ep 13 Hawker Food"),
		cand("ddddddddd00", "Swee Guan Ep 13"),
	})
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Candidate.VideoID
	}
	// 00: 10+6+4+2*14=48; 03: 10+8+6-4+14=34; 01,02: 10+8+6+4=28
	assert.Equal(t, []string{"ddddddddd00", "ddddddddd03", "ddddddddd01", "ddddddddd02"}, ids)
	assert.Equal(t, 48, ranked[0].Score)
	assert.True(t, ranked[1].Members)
}

func TestRank_MembersSortsLastOnEqualScore(t *testing.T) {
	t.Parallel()
	// No stall country, so only episode, cuisine, members and name rules apply.
	stall := model.StallRecord{Slug: "ah-seng", Name: "Ah Seng Prawn", Cuisine: "laksa", EpisodeNumber: "2"}
	members := cand("eeeeeeeeee0", "members laksa seng") // -4 + 8 + 14
	plain := cand("eeeeeeeeee1", "seng ok")              // 4 + 14

	ranked := Rank(stall, []model.VideoCandidate{members, plain})
	require.Len(t, ranked, 2)
	assert.Equal(t, 18, ranked[0].Score)
	assert.Equal(t, 18, ranked[1].Score)
	assert.Equal(t, plain.VideoID, ranked[0].Candidate.VideoID)

	// Equal scores are still refused.
	_, err := ChooseBestCandidate(stall, []model.VideoCandidate{members, plain})
	var amb *AmbiguousMatchError
	assert.True(t, errors.As(err, &amb))
}

func TestRank_MembersSwing(t *testing.T) {
	t.Parallel()
	stall := model.StallRecord{Slug: "x", Name: "Laksa King Prawn", Cuisine: "laksa", EpisodeNumber: "2"}
	members := cand("eeeeeeeeee0", "members Laksa King")
	plain := cand("eeeeeeeeee1", "Laksa King, yes")
	ranked := Rank(stall, []model.VideoCandidate{members, plain})
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score-8, ranked[1].Score)
	assert.Equal(t, plain.VideoID, ranked[0].Candidate.VideoID)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	c := Choice{Candidate: cand("fffffffffff", "t")}
	assert.NoError(t, Validate(c, map[string]string{"fffffffffff": "t"}))

	err := Validate(c, map[string]string{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInChannelFeed))
}
