package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodguide/stallsync/internal/model"
)

func resolved(id, cuisine, episode string, country model.Country, video, title string) model.StallRecord {
	return model.StallRecord{
		ID: id, Slug: id, Name: id, Cuisine: cuisine, Country: country, EpisodeNumber: episode,
		YoutubeVideoID: video, YoutubeVideoURL: model.WatchURL(video), YoutubeTitle: title,
	}
}

func TestCandidatesFor_StrictBucket(t *testing.T) {
	t.Parallel()
	pools := BuildPools([]model.StallRecord{
		resolved("a", "hawker", "5", model.CountrySG, "vidSG000001", "SG ep 5"),
		resolved("b", "hawker", "5.0", model.CountryMY, "vidMY000001", "MY ep 5"),
		resolved("c", "hawker", "6", model.CountrySG, "vidSG000006", "SG ep 6"),
	})

	got := pools.CandidatesFor(model.StallRecord{ID: "x", Cuisine: "hawker", EpisodeNumber: "5", Country: model.CountrySG})
	require.Len(t, got, 1)
	assert.Equal(t, "vidSG000001", got[0].VideoID)
	assert.Equal(t, "5", got[0].Episode)
}

func TestCandidatesFor_WidensWithoutCountry(t *testing.T) {
	t.Parallel()
	pools := BuildPools([]model.StallRecord{
		resolved("a", "hawker", "5", model.CountryMY, "vidMY000001", "MY ep 5"),
		resolved("b", "hawker", "5", model.CountryTH, "vidTH000001", "TH ep 5"),
	})

	got := pools.CandidatesFor(model.StallRecord{ID: "x", Cuisine: "hawker", EpisodeNumber: "5", Country: model.CountrySG})
	require.Len(t, got, 2)
	assert.Equal(t, "vidMY000001", got[0].VideoID)
	assert.Equal(t, "vidTH000001", got[1].VideoID)
}

func TestCandidatesFor_DedupesPreferringTitle(t *testing.T) {
	t.Parallel()
	pools := BuildPools([]model.StallRecord{
		resolved("a", "hawker", "5", model.CountrySG, "vidSG000001", ""),
		resolved("b", "hawker", "5", model.CountrySG, "vidSG000001", "Full title"),
		resolved("c", "hawker", "5", model.CountrySG, "vidSG000001", ""),
	})

	got := pools.CandidatesFor(model.StallRecord{ID: "x", Cuisine: "hawker", EpisodeNumber: "5", Country: model.CountrySG})
	require.Len(t, got, 1)
	assert.Equal(t, "Full title", got[0].YoutubeTitle)
}

func TestCandidatesFor_ExcludesSelfAndUnresolved(t *testing.T) {
	t.Parallel()
	self := resolved("self", "hawker", "5", model.CountrySG, "vidSELF0001", "mine")
	pools := BuildPools([]model.StallRecord{
		self,
		resolved("none", "hawker", "5", model.CountrySG, "", ""),
	})
	assert.Empty(t, pools.CandidatesFor(self))
}

func TestMatcher_Resolve(t *testing.T) {
	t.Parallel()
	stalls := []model.StallRecord{
		resolved("a", "hawker-food", "13", model.CountrySG, "vidGOOD0001", "Swee Guan Hokkien Mee Review Ep 13"),
		resolved("b", "hawker-food", "13", model.CountrySG, "vidBAD00001", "Random Unrelated Video Ep 13"),
	}
	uploads := map[string]string{
		"vidGOOD0001": "Swee Guan Hokkien Mee Review Ep 13 (fresh title)",
		"vidBAD00001": "Random Unrelated Video Ep 13",
	}
	m := NewMatcher(stalls, uploads)

	res, err := m.Resolve(hawkerStall())
	require.NoError(t, err)
	assert.Equal(t, "vidGOOD0001", res.VideoID)
	assert.Equal(t, "https://www.youtube.com/watch?v=vidGOOD0001", res.VideoURL)
	assert.Equal(t, "Swee Guan Hokkien Mee Review Ep 13 (fresh title)", res.Title)
	assert.Equal(t, ReasonScored, res.Reason)
	assert.Equal(t, "s1", res.StallID)
}

func TestMatcher_SingleCandidateStillValidated(t *testing.T) {
	t.Parallel()
	stalls := []model.StallRecord{
		resolved("a", "hawker-food", "13", model.CountrySG, "vidGONE0001", "Deleted upload"),
	}
	m := NewMatcher(stalls, map[string]string{"vidOTHER001": "x"})

	_, err := m.Resolve(hawkerStall())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInChannelFeed))
}
