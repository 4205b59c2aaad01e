package reconcile

import (
	"github.com/foodguide/stallsync/internal/model"
)

// Source is the catalog scope one sheet writes to.
type Source struct {
	Key          string
	Cuisine      string
	CuisineLabel string
	Country      model.Country
}

// Desired builds the target records for a source's places. Ids are left
// empty; Diff assigns them. bySlug is the persisted catalog keyed by slug
// and steers slugs of duplicate names (see AssignSlugs).
func Desired(places []model.SourceFoodPlace, src Source, bySlug map[string]model.StallRecord) ([]model.StallRecord, error) {
	slugs, err := AssignSlugs(places, src.Cuisine, bySlug)
	if err != nil {
		return nil, err
	}
	out := make([]model.StallRecord, len(places))
	for i, p := range places {
		out[i] = ToRecord(p, slugs[i], src)
	}
	return out, nil
}

// ToRecord maps one place to a stall record. A video link that yields no id
// leaves the media fields empty.
func ToRecord(p model.SourceFoodPlace, slug string, src Source) model.StallRecord {
	rec := model.StallRecord{
		Slug:            slug,
		Name:            p.Name,
		Cuisine:         src.Cuisine,
		CuisineLabel:    src.CuisineLabel,
		Country:         src.Country,
		EpisodeNumber:   model.NormalizeEpisode(p.EpisodeNumber),
		Address:         p.Address,
		OpeningTimes:    p.OpeningTimes,
		DishName:        p.DishName,
		Price:           p.Price,
		RatingOriginal:  p.RatingOriginal,
		RatingModerated: p.RatingModerated,
		Awards:          p.Awards,
		Status:          model.StallActive,
	}
	if id := model.ExtractVideoID(p.YoutubeVideoLink); id != "" {
		rec.YoutubeVideoID = id
		rec.YoutubeVideoURL = model.WatchURL(id)
	}
	return rec
}
