package sheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHeader_DriftTolerant(t *testing.T) {
	t.Parallel()
	header := []string{
		"Awards", "  EPISODE   Number ", "Place", "Name of Stall", "Dish Name", "Address",
		"Price (SGD)", "Rating (Original)", "Rating (Moderated)", "YouTube Video Link", "Opening Hours",
	}
	cols, err := ResolveHeader(header)
	require.NoError(t, err)
	assert.Equal(t, 0, cols.Awards)
	assert.Equal(t, 1, cols.Episode)
	assert.Equal(t, 2, cols.Place)
	assert.Equal(t, 3, cols.Name)
	assert.Equal(t, 4, cols.Dish)
	assert.Equal(t, 5, cols.Address)
	assert.Equal(t, 6, cols.Price)
	assert.Equal(t, 7, cols.RatingOriginal)
	assert.Equal(t, 8, cols.RatingModerated)
	assert.Equal(t, 9, cols.VideoLink)
	assert.Equal(t, 10, cols.Opening)
}

func TestResolveHeader_OptionalAbsent(t *testing.T) {
	t.Parallel()
	cols, err := ResolveHeader([]string{"Episode", "Name", "Address", "Original Rating"})
	require.NoError(t, err)
	assert.Equal(t, -1, cols.Awards)
	assert.Equal(t, -1, cols.VideoLink)
	assert.Equal(t, -1, cols.RatingModerated)
	assert.Equal(t, -1, cols.Place)
}

func TestResolveHeader_VideoTitleIsNotLink(t *testing.T) {
	t.Parallel()
	cols, err := ResolveHeader([]string{"Episode", "Name", "Address", "Rating Original", "YouTube Title", "Video URL"})
	require.NoError(t, err)
	assert.Equal(t, 5, cols.VideoLink)
}

func TestResolveHeader_MissingRequired(t *testing.T) {
	t.Parallel()
	_, err := ResolveHeader([]string{"Episode Number", "Name", "Rating (Original)"})
	require.Error(t, err)

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, ColAddress, mce.Column)
	assert.Contains(t, err.Error(), `"address"`)
}
