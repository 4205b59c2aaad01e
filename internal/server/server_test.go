package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/store"
	"github.com/foodguide/stallsync/internal/syncer"
	"github.com/foodguide/stallsync/pkg/geocode"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  []syncer.Request
	status model.RunStatus
}

func (f *fakeRunner) Run(_ context.Context, req syncer.Request) (*model.SyncRunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	sum := &model.SyncRunSummary{RunID: "run-1", Status: f.status, Mode: model.SyncMode(req.Mode), Errors: []string{}}
	if f.status == model.RunStatusFailed {
		sum.Errors = append(sum.Errors, "boom")
		return sum, errors.New("boom")
	}
	return sum, nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	stalls  []model.StallRecord
	filter  store.StallFilter
	pingErr error
	listErr error
}

func (f *fakeCatalog) ListStalls(_ context.Context, filter store.StallFilter) ([]model.StallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return f.stalls, f.listErr
}

func (f *fakeCatalog) lastFilter() store.StallFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

func (f *fakeCatalog) CountUnresolved(context.Context) (int, error) { return 3, nil }
func (f *fakeCatalog) CountUngeocoded(context.Context) (int, error) { return 1, nil }
func (f *fakeCatalog) Ping(context.Context) error                  { return f.pingErr }

type stubGeocoder struct {
	res *geocode.Result
	err error
}

func (s stubGeocoder) Geocode(_ context.Context, query, _ string) (*geocode.Result, error) {
	if _, err := geocode.NormalizeQuery(query); err != nil {
		return nil, err
	}
	return s.res, s.err
}

func newTestServer(t *testing.T, runner *fakeRunner, cat *fakeCatalog, gc geocode.Client) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(Deps{
		Runner:     runner,
		Catalog:    cat,
		Geocoder:   gc,
		AdminToken: "s3cret",
	}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSyncTrigger(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		query      string
		body       string
		ctype      string
		status     model.RunStatus
		wantCode   int
		wantMode   string
		wantForce  bool
		wantCalled bool
	}{
		{name: "query apply", method: http.MethodGet, query: "token=s3cret&mode=apply&force=1", status: model.RunStatusOK, wantCode: 200, wantMode: "apply", wantForce: true, wantCalled: true},
		{name: "dry-run default", method: http.MethodGet, query: "token=s3cret", status: model.RunStatusDryRun, wantCode: 200, wantCalled: true},
		{name: "json body", method: http.MethodPost, body: `{"token":"s3cret","mode":"dry-run","force":true}`, ctype: "application/json", status: model.RunStatusDryRun, wantCode: 200, wantMode: "dry-run", wantForce: true, wantCalled: true},
		{name: "json numeric force", method: http.MethodPost, body: `{"token":"s3cret","force":0}`, ctype: "application/json", status: model.RunStatusOK, wantCode: 200, wantCalled: true},
		{name: "form body", method: http.MethodPost, body: "token=s3cret&mode=apply&force=yes", ctype: "application/x-www-form-urlencoded", status: model.RunStatusOK, wantCode: 200, wantMode: "apply", wantForce: true, wantCalled: true},
		{name: "failed run", method: http.MethodGet, query: "token=s3cret&mode=apply", status: model.RunStatusFailed, wantCode: 500, wantMode: "apply", wantCalled: true},
		{name: "missing token", method: http.MethodGet, query: "mode=apply", wantCode: 401},
		{name: "wrong token", method: http.MethodGet, query: "token=nope", wantCode: 401},
		{name: "bad mode", method: http.MethodGet, query: "token=s3cret&mode=yolo", wantCode: 400},
		{name: "bad force", method: http.MethodGet, query: "token=s3cret&force=maybe", wantCode: 400},
		{name: "invalid json", method: http.MethodPost, body: `{"token":`, ctype: "application/json", wantCode: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{status: tt.status}
			srv := newTestServer(t, runner, &fakeCatalog{}, nil)

			req, err := http.NewRequest(tt.method, srv.URL+"/sync-trigger?"+tt.query, strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body := decode(t, resp)

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			if !tt.wantCalled {
				assert.Empty(t, runner.calls)
				assert.Equal(t, "error", body["status"])
				return
			}
			require.Len(t, runner.calls, 1)
			assert.Equal(t, tt.wantMode, runner.calls[0].Mode)
			assert.Equal(t, tt.wantForce, runner.calls[0].Force)
			assert.Equal(t, model.TriggerHTTP, runner.calls[0].Trigger)
			assert.Equal(t, string(tt.status), body["status"])
			assert.Equal(t, "run-1", body["runId"])
		})
	}
}

func TestSyncTrigger_NoTokenConfigured(t *testing.T) {
	runner := &fakeRunner{status: model.RunStatusDryRun}
	srv := httptest.NewServer(New(Deps{Runner: runner, Catalog: &fakeCatalog{}}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sync-trigger")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, runner.calls, 1)
}

func TestParseBoolish(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]bool{
		"": false, "0": false, "false": false, "No": false, "off": false,
		"1": true, "TRUE": true, "yes": true, "on": true, "2": true, "0.0": false,
	} {
		got, err := parseBoolish(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseBoolish("maybe")
	assert.Error(t, err)
}

func TestGeocodeSearch(t *testing.T) {
	tests := []struct {
		name     string
		q        string
		gc       geocode.Client
		wantCode int
		check    func(t *testing.T, body map[string]any)
	}{
		{
			name: "ok",
			q:    "near Bedok",
			gc: stubGeocoder{res: &geocode.Result{
				Latitude: 1.32, Longitude: 103.93, Label: "Bedok", Source: "local", Matched: true,
			}},
			wantCode: 200,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "ok", body["status"])
				assert.Equal(t, "local", body["source"])
				assert.Equal(t, "Bedok", body["label"])
				assert.InDelta(t, 1.32, body["lat"], 1e-9)
				assert.InDelta(t, 103.93, body["lng"], 1e-9)
			},
		},
		{
			name:     "too short",
			q:        "a",
			gc:       stubGeocoder{},
			wantCode: 400,
		},
		{
			name:     "not found",
			q:        "Atlantis",
			gc:       stubGeocoder{res: &geocode.Result{Matched: false}},
			wantCode: 404,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "error", body["status"])
				assert.Equal(t, "not found", body["error"])
			},
		},
		{
			name:     "providers down",
			q:        "Bedok",
			gc:       stubGeocoder{err: errors.New("all providers failed")},
			wantCode: 502,
		},
		{
			name:     "not configured",
			q:        "Bedok",
			wantCode: 503,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRunner{}, &fakeCatalog{}, tt.gc)
			resp, err := http.Get(srv.URL + "/geocode/search?" + url.Values{"q": {tt.q}, "country": {"SG"}}.Encode())
			require.NoError(t, err)
			body := decode(t, resp)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestStalls(t *testing.T) {
	cat := &fakeCatalog{stalls: []model.StallRecord{{ID: "s1", Slug: "ah-heng", Cuisine: "hawker", Status: model.StallActive}}}
	srv := newTestServer(t, &fakeRunner{}, cat, nil)

	resp, err := http.Get(srv.URL + "/stalls?cuisine=hawker&country=sg&limit=5000&offset=10")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, store.StallFilter{Cuisine: "hawker", Country: "SG", Status: "active", Limit: 1000, Offset: 10}, cat.lastFilter())

	resp, err = http.Get(srv.URL + "/stalls?status=all")
	require.NoError(t, err)
	decode(t, resp)
	assert.Equal(t, store.StallFilter{Limit: defaultStallLimit}, cat.lastFilter())
}

func TestStalls_BadParams(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, &fakeCatalog{}, nil)
	for _, q := range []string{"limit=abc", "limit=0", "offset=-1", "status=deleted"} {
		resp, err := http.Get(srv.URL + "/stalls?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestStalls_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, &fakeCatalog{}, nil)
	resp, err := http.Get(srv.URL + "/stalls")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, []any{}, body["stalls"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, &fakeCatalog{}, nil)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	catalog := body["catalog"].(map[string]any)
	assert.Equal(t, float64(3), catalog["unresolved_videos"])

	down := newTestServer(t, &fakeRunner{}, &fakeCatalog{pingErr: errors.New("db gone")}, nil)
	resp, err = http.Get(down.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, &fakeCatalog{}, nil)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/stalls", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://guide.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
