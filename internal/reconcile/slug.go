// Package reconcile diffs parsed source places against the persisted catalog
// and guards the resulting write plan.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/model"
)

// SlugCollisionError means two distinct stalls would share a slug. The run
// refuses to guess which one owns it.
type SlugCollisionError struct {
	Slug   string
	Detail string
}

func (e *SlugCollisionError) Error() string {
	return fmt.Sprintf("reconcile: slug %q collides: %s", e.Slug, e.Detail)
}

// AssignSlugs derives one slug per place. Places sharing a name within the
// source get "<slug>-<cuisine>-ep<episode>". Row order never decides which
// duplicate keeps the plain slug: only the one whose episode matches the
// stall persisted under it does, and with no such stall every duplicate is
// suffixed. A place whose suffixed slug is already persisted in the cuisine
// keeps it after its name becomes unique. existing is keyed by slug and may
// be nil. A collision that survives the suffix is an error.
func AssignSlugs(places []model.SourceFoodPlace, cuisine string, existing map[string]model.StallRecord) ([]string, error) {
	bases := make([]string, len(places))
	uses := make(map[string]int, len(places))
	for i, p := range places {
		base := model.Slugify(p.Name)
		if base == "" {
			return nil, eris.Errorf("reconcile: row %d: name %q yields an empty slug", p.SourceRow, p.Name)
		}
		bases[i] = base
		uses[base]++
	}

	persistedIn := func(slug string) (model.StallRecord, bool) {
		have, ok := existing[slug]
		return have, ok && have.Cuisine == cuisine
	}

	slugs := make([]string, len(places))
	owner := make(map[string]int, len(places))
	for i, p := range places {
		base := bases[i]
		suffixed := fmt.Sprintf("%s-%s-ep%s", base, model.Slugify(cuisine), model.Slugify(p.EpisodeNumber))

		slug := base
		if _, ok := persistedIn(suffixed); ok {
			slug = suffixed
		} else if uses[base] > 1 {
			have, ok := persistedIn(base)
			if !ok || have.EpisodeNumber != model.NormalizeEpisode(p.EpisodeNumber) {
				slug = suffixed
			}
		}

		if j, taken := owner[slug]; taken {
			return nil, &SlugCollisionError{
				Slug:   slug,
				Detail: fmt.Sprintf("rows %d and %d share name and episode", places[j].SourceRow, p.SourceRow),
			}
		}
		owner[slug] = i
		slugs[i] = slug
	}
	return slugs, nil
}

// checkUnique fails when the same slug is written twice across plans.
func checkUnique(ops []model.StallOp) error {
	seen := make(map[string]string, len(ops))
	for _, op := range ops {
		if op.Kind == model.OpDeactivate {
			continue
		}
		if prev, ok := seen[op.Stall.Slug]; ok {
			cuisines := []string{prev, op.Stall.Cuisine}
			sort.Strings(cuisines)
			return &SlugCollisionError{
				Slug:   op.Stall.Slug,
				Detail: "written by sources " + strings.Join(cuisines, " and "),
			}
		}
		seen[op.Stall.Slug] = op.Stall.Cuisine
	}
	return nil
}
