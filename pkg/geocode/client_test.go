package geocode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Bedok", "Bedok", false},
		{"  near   Tiong Bahru ", "Tiong Bahru", false},
		{"area: Chinatown", "Chinatown", false},
		{"Around AMK", "AMK", false},
		{"at near Bugis area", "Bugis", false},
		{"Jurong East area", "Jurong East", false},
		{"near a", "", true},
		{"", "", true},
		{"area", "area", false},
		{"新加", "新加", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeQuery(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidQuery))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeocode_LocalAreaFirst(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL, "key")
	r, err := g.Geocode(context.Background(), "near amk", "SG")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "local", r.Source)
	assert.Equal(t, "Ang Mo Kio", r.Label)
	assert.InDelta(t, 1.369, r.Latitude, 0.01)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeocode_LocalAreaSkippedOutsideSG(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/osm/search", r.URL.Path)
		assert.Equal(t, "my", r.URL.Query().Get("countrycodes"))
		_, _ = io.WriteString(w, `[{"lat":"3.1","lon":"101.6","display_name":"Bedok, KL","category":"place"}]`)
	}))
	defer srv.Close()

	r, err := newTestGeocoder(srv.URL, "").Geocode(context.Background(), "Bedok", "MY")
	require.NoError(t, err)
	assert.Equal(t, "nominatim", r.Source)
	assert.Equal(t, "centroid", r.Quality)
}

func TestGeocode_GooglePrimary(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/google", r.URL.Path)
		assert.Equal(t, "335 Smith St", r.URL.Query().Get("address"))
		assert.Equal(t, "country:SG", r.URL.Query().Get("components"))
		assert.Equal(t, "sg", r.URL.Query().Get("region"))
		assert.Equal(t, "gkey", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 1.2822, "lng": 103.8432}, "location_type": "ROOFTOP"},
				"formatted_address": "335 Smith St, Singapore 050335"
			}]
		}`)
	}))
	defer srv.Close()

	r, err := newTestGeocoder(srv.URL, "gkey").Geocode(context.Background(), "335 Smith St", "sg")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "google", r.Source)
	assert.Equal(t, "rooftop", r.Quality)
	assert.Equal(t, "335 Smith St, Singapore 050335", r.Label)
}

func TestGeocode_FallsBackToNominatim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		google func(w http.ResponseWriter)
	}{
		{"zero results", func(w http.ResponseWriter) { _, _ = io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`) }},
		{"denied", func(w http.ResponseWriter) { _, _ = io.WriteString(w, `{"status":"REQUEST_DENIED"}`) }},
		{"server error", func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/google" {
					tt.google(w)
					return
				}
				assert.Equal(t, "stallsync-test", r.Header.Get("User-Agent"))
				assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
				_, _ = io.WriteString(w, `[{"lat":"1.30","lon":"103.90","display_name":"Old Airport Road Food Centre","category":"amenity"}]`)
			}))
			defer srv.Close()

			r, err := newTestGeocoder(srv.URL, "gkey").Geocode(context.Background(), "Old Airport Road", "SG")
			require.NoError(t, err)
			assert.Equal(t, "nominatim", r.Source)
			assert.Equal(t, "rooftop", r.Quality)
			assert.InDelta(t, 103.90, r.Longitude, 0.001)
		})
	}
}

func TestGeocode_NotFoundIsCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL, "")
	for range 3 {
		r, err := g.Geocode(context.Background(), "Nowhere Lane", "SG")
		require.NoError(t, err)
		assert.False(t, r.Matched)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_ProviderErrorNotCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL, "gkey")
	_, err := g.Geocode(context.Background(), "Maxwell Road", "SG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")

	_, err = g.Geocode(context.Background(), "Maxwell Road", "SG")
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestGeocode_CoalescesConcurrentLookups(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		_, _ = io.WriteString(w, `[{"lat":"1.2","lon":"103.8","display_name":"x","category":"place"}]`)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL, "")
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := g.Geocode(context.Background(), "Telok Ayer", "SG")
			assert.NoError(t, err)
			assert.True(t, r.Matched)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_InvalidQuery(t *testing.T) {
	t.Parallel()
	_, err := NewClient().Geocode(context.Background(), "at x", "SG")
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestTTLCache_Expiry(t *testing.T) {
	t.Parallel()

	c := newTTLCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.set("k", &Result{Matched: true, Source: "local"})
	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "local", got.Source)

	now = now.Add(time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok)

	disabled := newTTLCache(0)
	disabled.set("k", &Result{})
	_, ok = disabled.get("k")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, cacheKey("Bedok", "SG"), cacheKey(" bedok ", "SG"))
	assert.NotEqual(t, cacheKey("Bedok", "SG"), cacheKey("Bedok", "MY"))
	assert.Len(t, cacheKey("x", ""), 64)
}

func TestParseAreas(t *testing.T) {
	t.Parallel()

	tbl := DefaultAreas()
	assert.Greater(t, tbl.Len(), 40)
	a, ok := tbl.Lookup("  TOA   payoh ")
	require.True(t, ok)
	assert.Equal(t, "Toa Payoh", a.Name)
	_, ok = tbl.Lookup("Atlantis")
	assert.False(t, ok)

	_, err := ParseAreas([]byte("areas:\n  - name: A\n    aliases: [a]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate area key")

	_, err = ParseAreas([]byte("areas: [{lat: 1}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no name")
}
