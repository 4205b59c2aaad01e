package syncer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/match"
	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/reconcile"
)

// loadUploads returns the channel's upload map, or nil when YouTube is not
// configured. A feed failure is fatal for apply runs, since sheet links
// could not be checked; a dry-run only warns and skips the video checks.
func (r *run) loadUploads(ctx context.Context, mode model.SyncMode) (map[string]string, error) {
	if r.s.youtube == nil || r.s.cfg.YouTube.ChannelID == "" {
		return nil, nil
	}
	uploads, err := r.s.youtube.Uploads(ctx, r.s.cfg.YouTube.ChannelID)
	if err != nil {
		if mode == model.ModeApply {
			return nil, eris.Wrap(err, "syncer: load uploads")
		}
		r.warn("youtube uploads unavailable, video checks skipped: %v", err)
		return nil, nil
	}
	r.log.Debug("sync: loaded channel uploads", zap.Int("videos", len(uploads)))
	return uploads, nil
}

// validateVideos drops sheet links that are not in the channel feed and
// takes titles from the feed. A dropped link leaves any persisted video in
// place.
func (r *run) validateVideos(desired []model.StallRecord, uploads map[string]string) {
	if uploads == nil {
		return
	}
	for i := range desired {
		rec := &desired[i]
		if rec.YoutubeVideoID == "" {
			continue
		}
		title, ok := uploads[rec.YoutubeVideoID]
		if !ok {
			r.warn("stall %s: video %s not in channel feed, link ignored", rec.Slug, rec.YoutubeVideoID)
			rec.YoutubeVideoID, rec.YoutubeVideoURL, rec.YoutubeTitle = "", "", ""
			continue
		}
		rec.YoutubeTitle = title
	}
}

// classifyHours fills time categories. Persisted categories are reused when
// the opening times did not change.
func (r *run) classifyHours(ctx context.Context, desired []model.StallRecord, bySlug map[string]model.StallRecord) {
	for i := range desired {
		rec := &desired[i]
		if have, ok := bySlug[rec.Slug]; ok && have.OpeningTimes == rec.OpeningTimes {
			rec.TimeCategories = have.TimeCategories
			continue
		}
		cats, err := r.s.hours.Classify(ctx, rec.OpeningTimes)
		if err != nil {
			r.warn("stall %s: classify opening times: %v", rec.Slug, err)
			continue
		}
		rec.TimeCategories = cats
	}
}

// matchVideos resolves videos for planned inserts and updates that still
// lack one. Failures leave the video empty.
func (r *run) matchVideos(plan *reconcile.Plan, existing []model.StallRecord, uploads map[string]string) {
	if uploads == nil {
		return
	}

	view := make(map[string]model.StallRecord, len(existing))
	for _, st := range existing {
		view[st.Slug] = st
	}
	for _, op := range plan.Inserts {
		view[op.Stall.Slug] = op.Stall
	}
	for _, op := range plan.Updates {
		view[op.Stall.Slug] = op.Stall
	}
	for _, op := range plan.Deactivations {
		delete(view, op.Stall.Slug)
	}
	catalog := make([]model.StallRecord, 0, len(view))
	for _, st := range view {
		catalog = append(catalog, st)
	}
	m := match.NewMatcher(catalog, uploads)

	resolve := func(op *model.StallOp) {
		if op.Stall.HasVideo() {
			return
		}
		res, err := m.Resolve(op.Stall)
		if err != nil {
			if errors.Is(err, match.ErrNoCandidates) {
				return
			}
			r.warn("stall %s: video not matched: %v", op.Stall.Slug, err)
			return
		}
		op.Stall.YoutubeVideoID = res.VideoID
		op.Stall.YoutubeVideoURL = res.VideoURL
		op.Stall.YoutubeTitle = res.Title
		if op.Kind == model.OpUpdate {
			op.Fields = append(op.Fields, "youtubeVideoId")
		}
		r.log.Debug("sync: matched video",
			zap.String("slug", op.Stall.Slug),
			zap.String("video_id", res.VideoID),
			zap.String("reason", res.Reason),
			zap.Int("score", res.Score),
		)
	}
	for i := range plan.Inserts {
		resolve(&plan.Inserts[i])
	}
	for i := range plan.Updates {
		resolve(&plan.Updates[i])
	}
}

// geocodePlan looks up coordinates for planned stalls still at 0,0. The
// geocoder throttles itself; failures leave 0,0 for a later backfill.
func (r *run) geocodePlan(ctx context.Context, plan *reconcile.Plan) {
	if r.s.geocoder == nil {
		return
	}
	lookup := func(op *model.StallOp) {
		if op.Stall.Geocoded() || op.Stall.Address == "" {
			return
		}
		res, err := r.s.geocoder.Geocode(ctx, op.Stall.Address, string(op.Stall.Country))
		if err != nil {
			r.warn("stall %s: geocode: %v", op.Stall.Slug, err)
			return
		}
		if !res.Matched {
			r.warn("stall %s: address %q not found by geocoder", op.Stall.Slug, op.Stall.Address)
			return
		}
		op.Stall.Lat, op.Stall.Lng = res.Latitude, res.Longitude
	}
	for i := range plan.Inserts {
		lookup(&plan.Inserts[i])
	}
	for i := range plan.Updates {
		lookup(&plan.Updates[i])
	}
}
