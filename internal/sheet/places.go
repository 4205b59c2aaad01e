package sheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/model"
)

var numberRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// RowError is a data-quality failure tied to one source line.
type RowError struct {
	Line   int
	Slug   string
	Column string
	Msg    string
}

func (e *RowError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("sheet: row %d (%s): %s: %s", e.Line, e.Slug, e.Column, e.Msg)
	}
	return fmt.Sprintf("sheet: row %d: %s: %s", e.Line, e.Column, e.Msg)
}

// carry is the forward-fill state threaded through the row fold. It is
// replaced, never mutated.
type carry struct {
	episode string
	place   string
	video   string
}

func (c carry) next(episode, place, video string) carry {
	if episode != "" {
		c.episode = episode
	}
	if place != "" {
		c.place = place
	}
	if video != "" {
		c.video = video
	}
	return c
}

// Parse runs ParseRows and ExtractPlaces over a snapshot.
func Parse(text string) ([]model.SourceFoodPlace, error) {
	rows, err := ParseRows(text)
	if err != nil {
		return nil, err
	}
	return ExtractPlaces(rows)
}

// ExtractPlaces maps data rows to places. The first row is the header.
// Episode, place and video link carry forward across the whole sheet; a row
// with neither name nor address only updates the carry.
func ExtractPlaces(rows []Row) ([]model.SourceFoodPlace, error) {
	if len(rows) == 0 {
		return nil, eris.New("sheet: no header row")
	}
	cols, err := ResolveHeader(rows[0].Cells)
	if err != nil {
		return nil, err
	}

	var (
		places []model.SourceFoodPlace
		state  carry
	)
	for _, row := range rows[1:] {
		state = state.next(
			cell(row.Cells, cols.Episode),
			cell(row.Cells, cols.Place),
			cell(row.Cells, cols.VideoLink),
		)

		name := cell(row.Cells, cols.Name)
		address := cell(row.Cells, cols.Address)
		if name == "" && address == "" {
			continue
		}

		place, err := toPlace(row, cols, state, name, address)
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	return places, nil
}

func toPlace(row Row, cols Columns, state carry, name, address string) (model.SourceFoodPlace, error) {
	slug := model.Slugify(name)
	if state.episode == "" {
		return model.SourceFoodPlace{}, &RowError{Line: row.Line, Slug: slug, Column: ColEpisode, Msg: "missing episode number"}
	}

	original, err := ParseRating(cell(row.Cells, cols.RatingOriginal))
	if err != nil {
		return model.SourceFoodPlace{}, &RowError{Line: row.Line, Slug: slug, Column: ColRatingOriginal, Msg: err.Error()}
	}
	moderated, err := ParseRating(cell(row.Cells, cols.RatingModerated))
	if err != nil {
		return model.SourceFoodPlace{}, &RowError{Line: row.Line, Slug: slug, Column: ColRatingModerated, Msg: err.Error()}
	}

	return model.SourceFoodPlace{
		SourceRow:        row.Line,
		EpisodeNumber:    model.NormalizeEpisode(state.episode),
		Place:            state.place,
		Name:             name,
		Address:          address,
		DishName:         cell(row.Cells, cols.Dish),
		Price:            cell(row.Cells, cols.Price),
		OpeningTimes:     cell(row.Cells, cols.Opening),
		RatingOriginal:   original,
		RatingModerated:  moderated,
		YoutubeVideoLink: state.video,
		Awards:           SplitAwards(cell(row.Cells, cols.Awards)),
	}, nil
}

// ParseRating takes the first numeric substring of a cell. No number gives
// nil. A number that is not an integer in 0..3 is an error.
func ParseRating(s string) (*int, error) {
	m := numberRe.FindString(s)
	if m == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil, nil
	}
	if f != math.Trunc(f) {
		return nil, eris.Errorf("rating %q is not a whole number", m)
	}
	r := int(f)
	if err := model.ValidateRating(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SplitAwards splits on newlines and semicolons, dropping empty entries.
func SplitAwards(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
