// Package store is the persistence gateway for the stall catalog. Postgres
// (pgx) and SQLite (modernc) share one schema shape and one query builder.
package store

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/model"
)

// StallFilter narrows ListStalls. Zero values mean "any".
type StallFilter struct {
	Cuisine string `json:"cuisine,omitempty"`
	Country string `json:"country,omitempty"`
	Status  string `json:"status,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the sync pipeline.
type Store interface {
	// Stalls
	ListStalls(ctx context.Context, filter StallFilter) ([]model.StallRecord, error)
	ApplyPlan(ctx context.Context, ops []model.StallOp, state map[string]string) error
	FillVideo(ctx context.Context, stallID, videoURL, videoID, title string) (bool, error)
	SetCoordinates(ctx context.Context, stallID string, lat, lng float64) error

	// Verification
	CountUnresolved(ctx context.Context) (int, error)
	CountUngeocoded(ctx context.Context) (int, error)

	// Sync state
	GetState(ctx context.Context, key string) (string, error)
	RecordRun(ctx context.Context, summary *model.SyncRunSummary) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// SnapshotKey is the sync_state key holding a source's last applied hash.
func SnapshotKey(sourceKey string) string {
	return "snapshot:" + sourceKey
}

var stallColumns = []string{
	"id", "slug", "name", "cuisine", "cuisine_label", "country", "episode_number",
	"address", "opening_times", "dish_name", "price", "rating_original", "rating_moderated",
	"youtube_title", "youtube_video_url", "youtube_video_id", "lat", "lng",
	"time_categories", "awards", "added_at", "last_scraped_at", "updated_at", "status",
}

// queries builds dialect-specific SQL from one set of definitions.
type queries struct {
	b sq.StatementBuilderType
}

func (q queries) listStalls(f StallFilter) sq.SelectBuilder {
	sel := q.b.Select(stallColumns...).From("stalls")
	if f.Cuisine != "" {
		sel = sel.Where(sq.Eq{"cuisine": f.Cuisine})
	}
	if f.Country != "" {
		sel = sel.Where(sq.Eq{"country": f.Country})
	}
	if f.Status != "" {
		sel = sel.Where(sq.Eq{"status": f.Status})
	}
	sel = sel.OrderBy("cuisine", "slug")
	// Offset only applies together with a limit.
	if f.Limit > 0 {
		sel = sel.Limit(uint64(f.Limit))
		if f.Offset > 0 {
			sel = sel.Offset(uint64(f.Offset))
		}
	}
	return sel
}

func (q queries) countUnresolved() sq.SelectBuilder {
	return q.b.Select("COUNT(*)").From("stalls").
		Where(sq.Eq{"status": string(model.StallActive)}).
		Where(sq.Or{sq.Eq{"youtube_video_id": nil}, sq.Eq{"youtube_video_id": ""}})
}

func (q queries) countUngeocoded() sq.SelectBuilder {
	return q.b.Select("COUNT(*)").From("stalls").
		Where(sq.Eq{"status": string(model.StallActive)}).
		Where(sq.Eq{"lat": 0, "lng": 0})
}

func (q queries) getState(key string) sq.SelectBuilder {
	return q.b.Select("value").From("sync_state").Where(sq.Eq{"key": key})
}

// upsertLocation keeps the stall's primary location row (id = stall id) in
// step with the stall itself. A location video already set is never
// replaced.
func (q queries) upsertLocation(s model.StallRecord) sq.InsertBuilder {
	return q.b.Insert("stall_locations").
		Columns("id", "stall_id", "address", "lat", "lng", "youtube_video_url", "status").
		Values(s.ID, s.ID, s.Address, s.Lat, s.Lng, s.YoutubeVideoURL, string(s.Status)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET address = excluded.address, lat = excluded.lat,
			lng = excluded.lng,
			youtube_video_url = COALESCE(NULLIF(stall_locations.youtube_video_url, ''), excluded.youtube_video_url),
			status = excluded.status`)
}

// opStatements expands one plan op into the statements that persist it.
func (q queries) opStatements(op model.StallOp, now time.Time) ([]sq.Sqlizer, error) {
	s := op.Stall
	switch op.Kind {
	case model.OpInsert:
		vals, err := stallValues(s, now)
		if err != nil {
			return nil, err
		}
		ins := q.b.Insert("stalls").Columns(stallColumns...).Values(vals...)
		return []sq.Sqlizer{ins, q.upsertLocation(s)}, nil

	case model.OpUpdate:
		vals, err := stallValues(s, now)
		if err != nil {
			return nil, err
		}
		upd := q.b.Update("stalls").Where(sq.Eq{"id": s.ID})
		// id and added_at are immutable.
		for i, col := range stallColumns {
			if col == "id" || col == "added_at" {
				continue
			}
			upd = upd.Set(col, vals[i])
		}
		return []sq.Sqlizer{upd, q.upsertLocation(s)}, nil

	case model.OpDeactivate:
		inactive := string(model.StallInactive)
		return []sq.Sqlizer{
			q.b.Update("stalls").
				Set("status", inactive).
				Set("updated_at", now).
				Where(sq.Eq{"id": s.ID}),
			q.b.Update("stall_locations").
				Set("status", inactive).
				Where(sq.Eq{"stall_id": s.ID}),
		}, nil
	}
	return nil, eris.Errorf("store: unknown op kind %q", op.Kind)
}

func (q queries) setState(key, value string, now time.Time) sq.InsertBuilder {
	return q.b.Insert("sync_state").
		Columns("key", "value", "updated_at").
		Values(key, value, now).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")
}

// fillVideo only touches rows whose video is still empty.
func (q queries) fillVideo(stallID, videoURL, videoID, title string, now time.Time) (sq.UpdateBuilder, sq.UpdateBuilder) {
	empty := func(col string) sq.Or { return sq.Or{sq.Eq{col: nil}, sq.Eq{col: ""}} }
	stall := q.b.Update("stalls").
		Set("youtube_video_url", videoURL).
		Set("youtube_video_id", videoID).
		Set("youtube_title", title).
		Set("updated_at", now).
		Where(sq.Eq{"id": stallID}).
		Where(empty("youtube_video_url"))
	locs := q.b.Update("stall_locations").
		Set("youtube_video_url", videoURL).
		Where(sq.Eq{"stall_id": stallID, "status": string(model.StallActive)}).
		Where(empty("youtube_video_url"))
	return stall, locs
}

func (q queries) setCoordinates(stallID string, lat, lng float64, now time.Time) (sq.UpdateBuilder, sq.UpdateBuilder) {
	stall := q.b.Update("stalls").
		Set("lat", lat).
		Set("lng", lng).
		Set("updated_at", now).
		Where(sq.Eq{"id": stallID})
	loc := q.b.Update("stall_locations").
		Set("lat", lat).
		Set("lng", lng).
		Where(sq.Eq{"id": stallID})
	return stall, loc
}

func (q queries) recordRun(s *model.SyncRunSummary) (sq.InsertBuilder, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return sq.InsertBuilder{}, eris.Wrap(err, "store: marshal run summary")
	}
	return q.b.Insert("sync_runs").
		Columns("id", "status", "mode", "trigger_source", "summary", "started_at", "finished_at").
		Values(s.RunID, string(s.Status), string(s.Mode), s.TriggerSource, string(body), s.StartedAt, s.FinishedAt), nil
}

// stallValues returns column values in stallColumns order.
func stallValues(s model.StallRecord, now time.Time) ([]any, error) {
	cats, err := encodeList(s.TimeCategories)
	if err != nil {
		return nil, err
	}
	awards, err := encodeList(s.Awards)
	if err != nil {
		return nil, err
	}
	addedAt := s.AddedAt
	if addedAt.IsZero() {
		addedAt = now
	}
	status := s.Status
	if status == "" {
		status = model.StallActive
	}
	var scraped any
	if s.LastScrapedAt != nil {
		scraped = *s.LastScrapedAt
	}
	return []any{
		s.ID, s.Slug, s.Name, s.Cuisine, s.CuisineLabel, string(s.Country), s.EpisodeNumber,
		s.Address, s.OpeningTimes, s.DishName, s.Price, nullInt(s.RatingOriginal), nullInt(s.RatingModerated),
		s.YoutubeTitle, s.YoutubeVideoURL, s.YoutubeVideoID, s.Lat, s.Lng,
		cats, awards, addedAt, scraped, now, string(status),
	}, nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func encodeList(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", eris.Wrap(err, "store: encode list")
	}
	return string(b), nil
}

func decodeList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStall(row scannable) (model.StallRecord, error) {
	var s model.StallRecord
	var country, status, cats, awards string
	var ratingOrig, ratingMod *int64
	var lastScraped *time.Time
	err := row.Scan(
		&s.ID, &s.Slug, &s.Name, &s.Cuisine, &s.CuisineLabel, &country, &s.EpisodeNumber,
		&s.Address, &s.OpeningTimes, &s.DishName, &s.Price, &ratingOrig, &ratingMod,
		&s.YoutubeTitle, &s.YoutubeVideoURL, &s.YoutubeVideoID, &s.Lat, &s.Lng,
		&cats, &awards, &s.AddedAt, &lastScraped, &s.UpdatedAt, &status,
	)
	if err != nil {
		return s, eris.Wrap(err, "store: scan stall")
	}
	s.Country = model.Country(country)
	s.Status = model.StallStatus(status)
	s.TimeCategories = decodeList(cats)
	s.Awards = decodeList(awards)
	s.RatingOriginal = fromNullInt(ratingOrig)
	s.RatingModerated = fromNullInt(ratingMod)
	s.LastScrapedAt = lastScraped
	return s, nil
}

func fromNullInt(p *int64) *int {
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}
