// Package syncer orchestrates a stall sync run: fetch every source snapshot,
// parse it, diff it against the catalog and either report or apply the plan.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/config"
	"github.com/foodguide/stallsync/internal/fetcher"
	"github.com/foodguide/stallsync/internal/hours"
	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/monitoring"
	"github.com/foodguide/stallsync/internal/reconcile"
	"github.com/foodguide/stallsync/internal/sheet"
	"github.com/foodguide/stallsync/internal/store"
	"github.com/foodguide/stallsync/pkg/geocode"
	"github.com/foodguide/stallsync/pkg/youtube"
)

// ErrApplyInProgress is returned when an apply run starts while another is
// still writing.
var ErrApplyInProgress = eris.New("syncer: another apply run is in progress")

// SnapshotSource fetches one source's normalized snapshot.
type SnapshotSource interface {
	Fetch(ctx context.Context, src config.SourceConfig) (*fetcher.Snapshot, error)
}

// Request is one trigger of the orchestrator.
type Request struct {
	Mode    string
	Force   bool
	Trigger string
}

// Syncer runs syncs and backfills against one store.
type Syncer struct {
	cfg       *config.Config
	store     store.Store
	snapshots SnapshotSource
	youtube   youtube.Client
	geocoder  geocode.Client
	hours     hours.Classifier
	alerter   *monitoring.Alerter
	differ    *reconcile.Differ

	applyMu sync.Mutex
	now     func() time.Time
	newID   func() string
}

// New creates a Syncer. Optional collaborators are attached with the Set
// methods; without them the matching steps are skipped.
func New(cfg *config.Config, st store.Store, snaps SnapshotSource) *Syncer {
	return &Syncer{
		cfg:       cfg,
		store:     st,
		snapshots: snaps,
		hours:     hours.Rules{},
		differ:    reconcile.NewDiffer(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// SetYouTube enables video validation and matching.
func (s *Syncer) SetYouTube(c youtube.Client) { s.youtube = c }

// SetGeocoder enables geocoding of new and re-addressed stalls.
func (s *Syncer) SetGeocoder(g geocode.Client) { s.geocoder = g }

// SetClassifier replaces the rule-based opening-times classifier.
func (s *Syncer) SetClassifier(c hours.Classifier) {
	if c != nil {
		s.hours = c
	}
}

// SetAlerter forwards run summaries.
func (s *Syncer) SetAlerter(a *monitoring.Alerter) { s.alerter = a }

// run is the per-invocation state shared by the stages.
type run struct {
	s       *Syncer
	log     *zap.Logger
	states  *tracker
	summary *model.SyncRunSummary
}

func (s *Syncer) newRun(mode model.SyncMode, trigger string) *run {
	sum := &model.SyncRunSummary{
		RunID:         s.newID(),
		Status:        model.RunStatusOK,
		Mode:          mode,
		TriggerSource: trigger,
		Errors:        []string{},
		Warnings:      []string{},
		StartedAt:     s.now(),
	}
	log := zap.L().With(
		zap.String("component", "syncer"),
		zap.String("run_id", sum.RunID),
		zap.String("mode", string(mode)),
		zap.String("trigger", trigger),
	)
	return &run{s: s, log: log, states: newTracker(log), summary: sum}
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.log.Warn("sync: "+msg)
	r.summary.Warn(msg)
}

// Run executes one sync. The summary is always returned; err is non-nil
// exactly when the summary status is failed.
func (s *Syncer) Run(ctx context.Context, req Request) (*model.SyncRunSummary, error) {
	mode, modeErr := ResolveMode(req.Mode, s.cfg.Sync.Mode)
	if modeErr != nil {
		mode = model.ModeDryRun
	}
	r := s.newRun(mode, req.Trigger)
	if modeErr != nil {
		return r.finish(ctx, modeErr)
	}

	if mode == model.ModeApply {
		if !s.applyMu.TryLock() {
			return r.finish(ctx, ErrApplyInProgress)
		}
		defer s.applyMu.Unlock()
	}

	force := req.Force || s.cfg.Sync.ForceApply
	return r.finish(ctx, r.execute(ctx, mode, force))
}

func (r *run) execute(ctx context.Context, mode model.SyncMode, force bool) error {
	r.states.enter(StateFetching)
	snaps := make([]*fetcher.Snapshot, 0, len(r.s.cfg.Sources))
	for _, src := range r.s.cfg.Sources {
		snap, err := r.s.snapshots.Fetch(ctx, src)
		if err != nil {
			return err
		}
		snaps = append(snaps, snap)
	}
	existing, err := r.s.store.ListStalls(ctx, store.StallFilter{})
	if err != nil {
		return eris.Wrap(err, "syncer: list stalls")
	}

	noop, err := r.checkUnchanged(ctx, snaps, existing)
	if err != nil {
		return err
	}
	if noop {
		r.summary.NoChanges = true
		r.summary.Skipped = activeInScope(existing, snaps)
		r.log.Info("sync: all snapshots unchanged, nothing to do")
		return nil
	}

	r.states.enter(StateParsing)
	parsed := make([][]model.SourceFoodPlace, len(snaps))
	for i, snap := range snaps {
		places, err := sheet.Parse(snap.Text)
		if err != nil {
			return eris.Wrapf(err, "syncer: parse %s", snap.Source.Key)
		}
		parsed[i] = places
		r.summary.Sources[i].Places = len(places)
		if err := fetcher.WriteArtifacts(r.s.cfg.Sync.ArtifactDir, snap, places); err != nil {
			r.warn("artifacts for %s: %v", snap.Source.Key, err)
		}
	}

	r.states.enter(StateDiffing)
	uploads, err := r.loadUploads(ctx, mode)
	if err != nil {
		return err
	}
	plan, err := r.diff(ctx, snaps, parsed, existing, uploads)
	if err != nil {
		return err
	}
	r.matchVideos(&plan, existing, uploads)

	total := activeInScope(existing, snaps)
	r.summary.Inserted = len(plan.Inserts)
	r.summary.Updated = len(plan.Updates)
	r.summary.Deactivated = len(plan.Deactivations)
	r.summary.Skipped = plan.Unchanged
	r.summary.ChangeRatio = changeRatio(plan.Changed(), total)

	if mode == model.ModeDryRun {
		r.states.enter(StateReporting)
		r.log.Info("sync: dry-run plan",
			zap.Int("inserts", len(plan.Inserts)),
			zap.Int("updates", len(plan.Updates)),
			zap.Int("deactivations", len(plan.Deactivations)),
			zap.Float64("change_ratio", r.summary.ChangeRatio),
		)
		return nil
	}

	r.states.enter(StateGuarding)
	guard, err := reconcile.Guard(plan.Changed(), total, r.s.cfg.Sync.MaxChangeRatio, force)
	if err != nil {
		return err
	}
	r.summary.Forced = guard.Forced
	if guard.Bootstrap {
		r.warn("empty catalog: bootstrapping %d stalls without ratio guard", plan.Changed())
	}
	if guard.Forced {
		r.warn("change ratio %.3f exceeds max %.3f; applied with force", guard.Ratio, r.s.cfg.Sync.MaxChangeRatio)
	}
	r.geocodePlan(ctx, &plan)

	r.states.enter(StateWriting)
	state := make(map[string]string, len(snaps))
	for _, snap := range snaps {
		state[store.SnapshotKey(snap.Source.Key)] = snap.Hash
	}
	if err := r.s.store.ApplyPlan(ctx, plan.Ordered(), state); err != nil {
		return eris.Wrap(err, "syncer: apply plan")
	}

	r.states.enter(StateVerifying)
	r.verify(ctx)
	return nil
}

// checkUnchanged fills the per-source summaries and reports whether every
// snapshot matches its last applied hash, every cuisine still has active
// stalls and every artifact is on disk.
func (r *run) checkUnchanged(ctx context.Context, snaps []*fetcher.Snapshot, existing []model.StallRecord) (bool, error) {
	active := make(map[string]int)
	for _, st := range existing {
		if st.Status == model.StallActive {
			active[st.Cuisine]++
		}
	}

	r.summary.Sources = make([]model.SourceSummary, len(snaps))
	all := len(snaps) > 0
	for i, snap := range snaps {
		prev, err := r.s.store.GetState(ctx, store.SnapshotKey(snap.Source.Key))
		if err != nil {
			return false, eris.Wrapf(err, "syncer: read state for %s", snap.Source.Key)
		}
		changed := prev != snap.Hash
		r.summary.Sources[i] = model.SourceSummary{
			Key:     snap.Source.Key,
			Cuisine: snap.Source.Cuisine,
			Hash:    snap.Hash,
			Changed: changed,
		}
		if changed || active[snap.Source.Cuisine] == 0 || !fetcher.ArtifactsExist(r.s.cfg.Sync.ArtifactDir, snap.Source.Key) {
			all = false
		}
	}
	return all, nil
}

func (r *run) diff(ctx context.Context, snaps []*fetcher.Snapshot, parsed [][]model.SourceFoodPlace, existing []model.StallRecord, uploads map[string]string) (reconcile.Plan, error) {
	bySlug := make(map[string]model.StallRecord, len(existing))
	for _, st := range existing {
		bySlug[st.Slug] = st
	}

	plans := make([]reconcile.Plan, len(snaps))
	for i, snap := range snaps {
		src, err := scope(snap.Source)
		if err != nil {
			return reconcile.Plan{}, err
		}
		desired, err := reconcile.Desired(parsed[i], src, bySlug)
		if err != nil {
			return reconcile.Plan{}, eris.Wrapf(err, "syncer: records for %s", snap.Source.Key)
		}
		r.validateVideos(desired, uploads)
		r.classifyHours(ctx, desired, bySlug)

		plan, err := r.s.differ.Diff(existing, desired, src.Cuisine)
		if err != nil {
			return reconcile.Plan{}, eris.Wrapf(err, "syncer: diff %s", snap.Source.Key)
		}
		plans[i] = plan
		r.summary.Sources[i].Inserted = len(plan.Inserts)
		r.summary.Sources[i].Updated = len(plan.Updates)
		r.summary.Sources[i].Deactivated = len(plan.Deactivations)
	}

	plan, err := reconcile.Merge(plans...)
	if err != nil {
		return reconcile.Plan{}, eris.Wrap(err, "syncer: merge plans")
	}
	return plan, nil
}

func (r *run) verify(ctx context.Context) {
	v := &model.Verification{}
	if n, err := r.s.store.CountUnresolved(ctx); err != nil {
		r.warn("verification: count unresolved: %v", err)
	} else {
		v.UnresolvedVideos = n
	}
	if n, err := r.s.store.CountUngeocoded(ctx); err != nil {
		r.warn("verification: count ungeocoded: %v", err)
	} else {
		v.Ungeocoded = n
	}
	r.summary.Verification = v
}

// finish maps the outcome onto the summary, records apply runs and forwards
// the summary to the alerter.
func (r *run) finish(ctx context.Context, err error) (*model.SyncRunSummary, error) {
	sum := r.summary
	sum.FinishedAt = r.s.now()
	if err != nil {
		var trip *reconcile.GuardTripError
		if errors.As(err, &trip) {
			sum.ChangeRatio = trip.Ratio
		}
		r.states.enter(StateFailed)
		sum.Fail(err.Error())
		r.log.Error("sync: run failed", zap.Error(err))
	} else {
		r.states.enter(StateDone)
		if sum.Mode == model.ModeDryRun {
			sum.Status = model.RunStatusDryRun
		}
		r.log.Info("sync: run complete",
			zap.String("status", string(sum.Status)),
			zap.Bool("no_changes", sum.NoChanges),
			zap.Int("inserted", sum.Inserted),
			zap.Int("updated", sum.Updated),
			zap.Int("deactivated", sum.Deactivated),
			zap.Int("warnings", len(sum.Warnings)),
			zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
		)
	}

	if sum.Mode == model.ModeApply {
		if recErr := r.s.store.RecordRun(ctx, sum); recErr != nil {
			r.log.Warn("sync: record run failed", zap.Error(recErr))
		}
	}
	if r.s.alerter != nil {
		r.s.alerter.Notify(ctx, sum)
	}
	return sum, err
}

func scope(src config.SourceConfig) (reconcile.Source, error) {
	out := reconcile.Source{Key: src.Key, Cuisine: src.Cuisine, CuisineLabel: src.CuisineLabel}
	if out.CuisineLabel == "" {
		out.CuisineLabel = src.Cuisine
	}
	if src.Country != "" {
		c, err := model.ParseCountry(src.Country)
		if err != nil {
			return reconcile.Source{}, eris.Wrapf(err, "syncer: source %s", src.Key)
		}
		out.Country = c
	}
	return out, nil
}

// activeInScope counts active stalls in the cuisines the snapshots cover.
func activeInScope(existing []model.StallRecord, snaps []*fetcher.Snapshot) int {
	cuisines := make(map[string]bool, len(snaps))
	for _, snap := range snaps {
		cuisines[snap.Source.Cuisine] = true
	}
	n := 0
	for _, st := range existing {
		if st.Status == model.StallActive && cuisines[st.Cuisine] {
			n++
		}
	}
	return n
}

func changeRatio(changed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(changed) / float64(total)
}
