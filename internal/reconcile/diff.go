package reconcile

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/foodguide/stallsync/internal/model"
)

// Plan is the set of writes for one run.
type Plan struct {
	Inserts       []model.StallOp `json:"inserts"`
	Updates       []model.StallOp `json:"updates"`
	Deactivations []model.StallOp `json:"deactivations"`
	Unchanged     int             `json:"unchanged"`
}

// Changed is the number of rows the plan would write.
func (p Plan) Changed() int {
	return len(p.Inserts) + len(p.Updates) + len(p.Deactivations)
}

// Empty reports whether the plan writes nothing.
func (p Plan) Empty() bool { return p.Changed() == 0 }

// Ordered lists inserts, then updates, then deactivations, so that an
// interrupted non-transactional apply never deactivates a stall whose
// replacement was not yet written.
func (p Plan) Ordered() []model.StallOp {
	out := make([]model.StallOp, 0, p.Changed())
	out = append(out, p.Inserts...)
	out = append(out, p.Updates...)
	out = append(out, p.Deactivations...)
	return out
}

// Merge combines per-source plans and rejects a slug written twice.
func Merge(plans ...Plan) (Plan, error) {
	var out Plan
	for _, p := range plans {
		out.Inserts = append(out.Inserts, p.Inserts...)
		out.Updates = append(out.Updates, p.Updates...)
		out.Deactivations = append(out.Deactivations, p.Deactivations...)
		out.Unchanged += p.Unchanged
	}
	if err := checkUnique(out.Ordered()); err != nil {
		return Plan{}, err
	}
	return out, nil
}

// Differ computes plans. NewID and Now are swappable for tests.
type Differ struct {
	NewID func() string
	Now   func() time.Time
}

// NewDiffer returns a Differ using random UUIDs and the wall clock.
func NewDiffer() *Differ {
	return &Differ{NewID: uuid.NewString, Now: func() time.Time { return time.Now().UTC() }}
}

// Diff matches desired records to existing ones by slug. existing is the whole
// catalog; deactivations only touch active stalls of cuisine. A slug owned by
// an active stall of another cuisine is a collision; an inactive one is
// reactivated and moved to cuisine.
func (d *Differ) Diff(existing, desired []model.StallRecord, cuisine string) (Plan, error) {
	now := d.Now()
	bySlug := make(map[string]model.StallRecord, len(existing))
	for _, s := range existing {
		bySlug[s.Slug] = s
	}

	var plan Plan
	seen := make(map[string]bool, len(desired))
	for _, want := range desired {
		seen[want.Slug] = true
		have, ok := bySlug[want.Slug]
		if !ok {
			rec := want
			rec.ID = d.NewID()
			rec.Status = model.StallActive
			rec.AddedAt = now
			rec.UpdatedAt = now
			rec.LastScrapedAt = &now
			plan.Inserts = append(plan.Inserts, model.StallOp{Kind: model.OpInsert, Stall: rec})
			continue
		}
		if have.Cuisine != cuisine && have.Status == model.StallActive {
			return Plan{}, &SlugCollisionError{
				Slug:   want.Slug,
				Detail: fmt.Sprintf("already used by stall %s in cuisine %s", have.ID, have.Cuisine),
			}
		}

		merged, fields := mergeStall(have, want)
		if len(fields) == 0 {
			plan.Unchanged++
			continue
		}
		merged.UpdatedAt = now
		merged.LastScrapedAt = &now
		plan.Updates = append(plan.Updates, model.StallOp{Kind: model.OpUpdate, Stall: merged, Fields: fields})
	}

	for _, s := range existing {
		if s.Cuisine != cuisine || s.Status != model.StallActive || seen[s.Slug] {
			continue
		}
		gone := s
		gone.Status = model.StallInactive
		gone.UpdatedAt = now
		plan.Deactivations = append(plan.Deactivations, model.StallOp{Kind: model.OpDeactivate, Stall: gone})
	}
	return plan, nil
}

// mergeStall applies the source view onto the persisted stall and lists the
// fields that changed. A blank source video never clears a persisted one, and
// an address change drops the coordinates so the stall is geocoded again.
func mergeStall(have, want model.StallRecord) (model.StallRecord, []string) {
	out := have
	var fields []string
	setStr := func(name string, dst *string, v string) {
		if *dst != v {
			*dst = v
			fields = append(fields, name)
		}
	}

	setStr("name", &out.Name, want.Name)
	setStr("cuisine", &out.Cuisine, want.Cuisine)
	setStr("cuisineLabel", &out.CuisineLabel, want.CuisineLabel)
	if out.Country != want.Country {
		out.Country = want.Country
		fields = append(fields, "country")
	}
	setStr("episodeNumber", &out.EpisodeNumber, want.EpisodeNumber)
	if out.Address != want.Address {
		out.Address = want.Address
		out.Lat, out.Lng = 0, 0
		fields = append(fields, "address")
	}
	setStr("openingTimes", &out.OpeningTimes, want.OpeningTimes)
	setStr("dishName", &out.DishName, want.DishName)
	setStr("price", &out.Price, want.Price)

	if !model.EqualRating(out.RatingOriginal, want.RatingOriginal) {
		out.RatingOriginal = want.RatingOriginal
		fields = append(fields, "ratingOriginal")
	}
	if !model.EqualRating(out.RatingModerated, want.RatingModerated) {
		out.RatingModerated = want.RatingModerated
		fields = append(fields, "ratingModerated")
	}

	if want.YoutubeVideoID != "" && want.YoutubeVideoID != out.YoutubeVideoID {
		out.YoutubeVideoID = want.YoutubeVideoID
		out.YoutubeVideoURL = want.YoutubeVideoURL
		out.YoutubeTitle = want.YoutubeTitle
		fields = append(fields, "youtubeVideoId")
	} else if want.YoutubeTitle != "" && want.YoutubeTitle != out.YoutubeTitle && want.YoutubeVideoID == out.YoutubeVideoID {
		out.YoutubeTitle = want.YoutubeTitle
		fields = append(fields, "youtubeTitle")
	}

	if !slices.Equal(out.TimeCategories, want.TimeCategories) {
		out.TimeCategories = want.TimeCategories
		fields = append(fields, "timeCategories")
	}
	if !slices.Equal(out.Awards, want.Awards) {
		out.Awards = want.Awards
		fields = append(fields, "awards")
	}
	if out.Status != model.StallActive {
		out.Status = model.StallActive
		fields = append(fields, "status")
	}
	return out, fields
}
