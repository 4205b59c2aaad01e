package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodguide/stallsync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testStall(id, slug, cuisine string) model.StallRecord {
	return model.StallRecord{
		ID:             id,
		Slug:           slug,
		Name:           "Stall " + slug,
		Cuisine:        cuisine,
		CuisineLabel:   "Hawker",
		Country:        model.CountrySG,
		EpisodeNumber:  "12",
		Address:        "1 Kadayanallur St, #01-10",
		OpeningTimes:   "7am-2pm",
		DishName:       "Char Kway Teow",
		Price:          "$5",
		RatingOriginal: model.IntPtr(3),
		TimeCategories: []string{"breakfast", "lunch"},
		Awards:         []string{"Michelin Bib Gourmand"},
		Status:         model.StallActive,
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_ApplyPlan_InsertAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "ah-heng", "hawker")
	b := testStall("id-b", "bee-hoon", "hawker")
	b.RatingOriginal = nil
	b.YoutubeVideoID = "dQw4w9WgXcQ"
	b.YoutubeVideoURL = model.WatchURL("dQw4w9WgXcQ")
	c := testStall("id-c", "menya", "ramen")
	c.Country = model.CountryJP

	ops := []model.StallOp{
		{Kind: model.OpInsert, Stall: a},
		{Kind: model.OpInsert, Stall: b},
		{Kind: model.OpInsert, Stall: c},
	}
	state := map[string]string{SnapshotKey("hawker"): "hash-1"}
	require.NoError(t, st.ApplyPlan(ctx, ops, state))

	all, err := st.ListStalls(ctx, StallFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by cuisine then slug.
	assert.Equal(t, []string{"ah-heng", "bee-hoon", "menya"}, []string{all[0].Slug, all[1].Slug, all[2].Slug})

	got := all[0]
	assert.Equal(t, "id-a", got.ID)
	assert.Equal(t, model.CountrySG, got.Country)
	require.NotNil(t, got.RatingOriginal)
	assert.Equal(t, 3, *got.RatingOriginal)
	assert.Nil(t, got.RatingModerated)
	assert.Equal(t, []string{"breakfast", "lunch"}, got.TimeCategories)
	assert.Equal(t, []string{"Michelin Bib Gourmand"}, got.Awards)
	assert.Equal(t, model.StallActive, got.Status)
	assert.False(t, got.AddedAt.IsZero())
	assert.Nil(t, got.LastScrapedAt)

	assert.Nil(t, all[1].RatingOriginal)
	assert.Equal(t, "dQw4w9WgXcQ", all[1].YoutubeVideoID)

	hash, err := st.GetState(ctx, SnapshotKey("hawker"))
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash)

	missing, err := st.GetState(ctx, SnapshotKey("ramen"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSQLite_ListStalls_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "a", "hawker")
	b := testStall("id-b", "b", "hawker")
	c := testStall("id-c", "c", "ramen")
	c.Country = model.CountryJP
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpInsert, Stall: a},
		{Kind: model.OpInsert, Stall: b},
		{Kind: model.OpInsert, Stall: c},
		{Kind: model.OpDeactivate, Stall: b},
	}, nil))

	tests := []struct {
		name   string
		filter StallFilter
		want   []string
	}{
		{"cuisine", StallFilter{Cuisine: "hawker"}, []string{"a", "b"}},
		{"country", StallFilter{Country: "JP"}, []string{"c"}},
		{"status", StallFilter{Status: "active"}, []string{"a", "c"}},
		{"limit", StallFilter{Limit: 1}, []string{"a"}},
		{"offset", StallFilter{Limit: 2, Offset: 1}, []string{"b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListStalls(ctx, tt.filter)
			require.NoError(t, err)
			var slugs []string
			for _, s := range got {
				slugs = append(slugs, s.Slug)
			}
			assert.Equal(t, tt.want, slugs)
		})
	}
}

func TestSQLite_ApplyPlan_UpdateAndDeactivate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "a", "hawker")
	b := testStall("id-b", "b", "hawker")
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpInsert, Stall: a},
		{Kind: model.OpInsert, Stall: b},
	}, nil))

	before, err := st.ListStalls(ctx, StallFilter{})
	require.NoError(t, err)
	addedAt := before[0].AddedAt

	a.Price = "$6"
	a.RatingModerated = model.IntPtr(2)
	a.AddedAt = time.Time{}
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpUpdate, Stall: a, Fields: []string{"price", "ratingModerated"}},
		{Kind: model.OpDeactivate, Stall: b},
	}, map[string]string{SnapshotKey("hawker"): "hash-2"}))

	after, err := st.ListStalls(ctx, StallFilter{})
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "$6", after[0].Price)
	require.NotNil(t, after[0].RatingModerated)
	assert.Equal(t, 2, *after[0].RatingModerated)
	assert.True(t, addedAt.Equal(after[0].AddedAt), "added_at must not change on update")
	assert.Equal(t, model.StallInactive, after[1].Status)

	var locStatus string
	require.NoError(t, st.db.QueryRow(`SELECT status FROM stall_locations WHERE stall_id = ?`, "id-b").Scan(&locStatus))
	assert.Equal(t, "inactive", locStatus)

	hash, err := st.GetState(ctx, SnapshotKey("hawker"))
	require.NoError(t, err)
	assert.Equal(t, "hash-2", hash)
}

func TestSQLite_ApplyPlan_RollsBackOnFailure(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "a", "hawker")
	dup := testStall("id-dup", "a", "hawker")
	err := st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpInsert, Stall: a},
		{Kind: model.OpInsert, Stall: dup},
	}, map[string]string{SnapshotKey("hawker"): "hash-x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert stall a")

	all, err := st.ListStalls(ctx, StallFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	hash, err := st.GetState(ctx, SnapshotKey("hawker"))
	require.NoError(t, err)
	assert.Empty(t, hash, "hash must not be stored when the apply fails")
}

func TestSQLite_ApplyPlan_KeepsCuratedLocationVideo(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "a", "hawker")
	b := testStall("id-b", "b", "hawker")
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpInsert, Stall: a},
		{Kind: model.OpInsert, Stall: b},
	}, nil))

	curated := model.WatchURL("curatedvid1")
	_, err := st.db.Exec(`UPDATE stall_locations SET youtube_video_url = ? WHERE id = ?`, curated, "id-a")
	require.NoError(t, err)

	a.Price = "$7"
	b.YoutubeVideoID = "newvideo123"
	b.YoutubeVideoURL = model.WatchURL("newvideo123")
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpUpdate, Stall: a, Fields: []string{"price"}},
		{Kind: model.OpUpdate, Stall: b, Fields: []string{"youtubeVideoId"}},
	}, nil))

	var locA, locB string
	require.NoError(t, st.db.QueryRow(`SELECT youtube_video_url FROM stall_locations WHERE id = ?`, "id-a").Scan(&locA))
	require.NoError(t, st.db.QueryRow(`SELECT youtube_video_url FROM stall_locations WHERE id = ?`, "id-b").Scan(&locB))
	assert.Equal(t, curated, locA, "an update must not overwrite a location video")
	assert.Equal(t, b.YoutubeVideoURL, locB, "an empty location video is filled from the stall")
}

func TestSQLite_FillVideo_OnlyWhenEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "a", "hawker")
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{{Kind: model.OpInsert, Stall: a}}, nil))

	url := model.WatchURL("abcdefghijk")
	filled, err := st.FillVideo(ctx, "id-a", url, "abcdefghijk", "Ep 12 Ah Heng")
	require.NoError(t, err)
	assert.True(t, filled)

	filled, err = st.FillVideo(ctx, "id-a", model.WatchURL("zzzzzzzzzzz"), "zzzzzzzzzzz", "other")
	require.NoError(t, err)
	assert.False(t, filled)

	got, err := st.ListStalls(ctx, StallFilter{})
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijk", got[0].YoutubeVideoID)
	assert.Equal(t, "Ep 12 Ah Heng", got[0].YoutubeTitle)

	var locURL string
	require.NoError(t, st.db.QueryRow(`SELECT youtube_video_url FROM stall_locations WHERE stall_id = ?`, "id-a").Scan(&locURL))
	assert.Equal(t, url, locURL)
}

func TestSQLite_SetCoordinatesAndCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testStall("id-a", "a", "hawker")
	b := testStall("id-b", "b", "hawker")
	b.YoutubeVideoID = "abcdefghijk"
	b.YoutubeVideoURL = model.WatchURL("abcdefghijk")
	b.Lat, b.Lng = 1.3, 103.8
	require.NoError(t, st.ApplyPlan(ctx, []model.StallOp{
		{Kind: model.OpInsert, Stall: a},
		{Kind: model.OpInsert, Stall: b},
	}, nil))

	n, err := st.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = st.CountUngeocoded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, st.SetCoordinates(ctx, "id-a", 1.28, 103.85))
	n, err = st.CountUngeocoded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	err = st.SetCoordinates(ctx, "missing", 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stall not found")
}

func TestSQLite_RecordRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sum := &model.SyncRunSummary{
		RunID:         "run-1",
		Status:        model.RunStatusDryRun,
		Mode:          model.ModeDryRun,
		TriggerSource: model.TriggerCLI,
		Inserted:      3,
		StartedAt:     now,
		FinishedAt:    now.Add(time.Second),
	}
	require.NoError(t, st.RecordRun(ctx, sum))

	var status, body string
	require.NoError(t, st.db.QueryRow(`SELECT status, summary FROM sync_runs WHERE id = ?`, "run-1").Scan(&status, &body))
	assert.Equal(t, "dry-run", status)
	assert.Contains(t, body, `"inserted":3`)

	// Same run id twice is rejected.
	assert.Error(t, st.RecordRun(ctx, sum))
}
