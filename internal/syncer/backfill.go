package syncer

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/match"
	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/store"
)

func backfillMode(apply bool) model.SyncMode {
	if apply {
		return model.ModeApply
	}
	return model.ModeDryRun
}

// BackfillVideos resolves a video for every active stall that lacks one.
// A stall that cannot be resolved is recorded as an error and skipped; the
// rest of the run continues. With apply, resolutions are written only where
// the video is still empty.
func (s *Syncer) BackfillVideos(ctx context.Context, apply bool) (*model.SyncRunSummary, error) {
	r := s.newRun(backfillMode(apply), model.TriggerBackfill)
	if s.youtube == nil || s.cfg.YouTube.ChannelID == "" {
		return r.finish(ctx, eris.New("syncer: backfill videos needs youtube api key and channel id"))
	}
	if apply {
		if !s.applyMu.TryLock() {
			return r.finish(ctx, ErrApplyInProgress)
		}
		defer s.applyMu.Unlock()
	}
	return r.finish(ctx, r.backfillVideos(ctx, apply))
}

func (r *run) backfillVideos(ctx context.Context, apply bool) error {
	r.states.enter(StateFetching)
	stalls, err := r.s.store.ListStalls(ctx, store.StallFilter{Status: string(model.StallActive)})
	if err != nil {
		return eris.Wrap(err, "syncer: list stalls")
	}
	uploads, err := r.s.youtube.Uploads(ctx, r.s.cfg.YouTube.ChannelID)
	if err != nil {
		return eris.Wrap(err, "syncer: load uploads")
	}

	r.states.enter(StateDiffing)
	m := match.NewMatcher(stalls, uploads)
	var resolved []match.Resolution
	for _, st := range stalls {
		if st.HasVideo() {
			continue
		}
		res, err := m.Resolve(st)
		if err != nil {
			r.summary.Errors = append(r.summary.Errors, fmt.Sprintf("stall %s: %v", st.Slug, err))
			r.summary.Skipped++
			continue
		}
		resolved = append(resolved, res)
	}
	r.log.Info("sync: video backfill resolved",
		zap.Int("resolved", len(resolved)),
		zap.Int("unresolved", r.summary.Skipped),
	)

	if !apply {
		r.states.enter(StateReporting)
		r.summary.Updated = len(resolved)
		return nil
	}

	r.states.enter(StateWriting)
	for _, res := range resolved {
		filled, err := r.s.store.FillVideo(ctx, res.StallID, res.VideoURL, res.VideoID, res.Title)
		if err != nil {
			return eris.Wrapf(err, "syncer: fill video for %s", res.Slug)
		}
		if !filled {
			r.warn("stall %s: video already set, left unchanged", res.Slug)
			r.summary.Skipped++
			continue
		}
		r.summary.Updated++
	}

	r.states.enter(StateVerifying)
	r.verify(ctx)
	return nil
}

// BackfillGeo geocodes every active stall still at 0,0.
func (s *Syncer) BackfillGeo(ctx context.Context, apply bool) (*model.SyncRunSummary, error) {
	r := s.newRun(backfillMode(apply), model.TriggerBackfill)
	if s.geocoder == nil {
		return r.finish(ctx, eris.New("syncer: backfill geo needs a geocoder"))
	}
	if apply {
		if !s.applyMu.TryLock() {
			return r.finish(ctx, ErrApplyInProgress)
		}
		defer s.applyMu.Unlock()
	}
	return r.finish(ctx, r.backfillGeo(ctx, apply))
}

func (r *run) backfillGeo(ctx context.Context, apply bool) error {
	r.states.enter(StateFetching)
	stalls, err := r.s.store.ListStalls(ctx, store.StallFilter{Status: string(model.StallActive)})
	if err != nil {
		return eris.Wrap(err, "syncer: list stalls")
	}

	if apply {
		r.states.enter(StateWriting)
	} else {
		r.states.enter(StateDiffing)
	}
	for _, st := range stalls {
		if st.Geocoded() || st.Address == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "syncer: backfill geo")
		}
		res, err := r.s.geocoder.Geocode(ctx, st.Address, string(st.Country))
		if err != nil {
			r.summary.Errors = append(r.summary.Errors, fmt.Sprintf("stall %s: %v", st.Slug, err))
			r.summary.Skipped++
			continue
		}
		if !res.Matched {
			r.warn("stall %s: address %q not found by geocoder", st.Slug, st.Address)
			r.summary.Skipped++
			continue
		}
		if apply {
			if err := r.s.store.SetCoordinates(ctx, st.ID, res.Latitude, res.Longitude); err != nil {
				return eris.Wrapf(err, "syncer: set coordinates for %s", st.Slug)
			}
		}
		r.summary.Updated++
	}

	if apply {
		r.states.enter(StateVerifying)
		r.verify(ctx)
	} else {
		r.states.enter(StateReporting)
	}
	return nil
}
