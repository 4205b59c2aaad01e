// Package geocode resolves free-text place queries to coordinates using a
// curated Singapore area table, Google (primary) and Nominatim (secondary).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrInvalidQuery is returned when a query is too short after normalization.
var ErrInvalidQuery = eris.New("geocode: query must be at least 2 characters")

// Client geocodes free-text queries.
type Client interface {
	// Geocode resolves query, optionally scoped to an ISO2 country. An
	// unmatched query is not an error: the result has Matched=false.
	Geocode(ctx context.Context, query, country string) (*Result, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Label     string  `json:"label"`
	Source    string  `json:"source"`  // "local", "google" or "nominatim"
	Quality   string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	Matched   bool    `json:"matched"`
}

// Result sources.
const (
	sourceLocal     = "local"
	sourceGoogle    = "google"
	sourceNominatim = "nominatim"
)

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables the Google Geocoding API as the primary provider.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithNominatimURL overrides the Nominatim base URL.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.nominatimURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client for provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithInterval sets the minimum spacing between provider requests. Zero
// disables throttling.
func WithInterval(d time.Duration) Option {
	return func(g *geocoder) {
		if d <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithCacheTTL sets how long results are cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *geocoder) {
		g.cache = newTTLCache(ttl)
	}
}

// WithAreas replaces the built-in Singapore area table.
func WithAreas(areas *AreaTable) Option {
	return func(g *geocoder) {
		g.areas = areas
	}
}

type geocoder struct {
	httpClient   *http.Client
	googleKey    string
	googleURL    string
	nominatimURL string
	userAgent    string
	limiter      *rate.Limiter
	cache        *ttlCache
	areas        *AreaTable
	group        singleflight.Group
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		googleURL:    googleGeocodeURL,
		nominatimURL: "https://nominatim.openstreetmap.org",
		userAgent:    "stallsync/1.0",
		limiter:      rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
		cache:        newTTLCache(10 * time.Minute),
		areas:        DefaultAreas(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var queryPrefixes = []string{"near ", "area:", "around ", "at "}

// NormalizeQuery strips filler prefixes and a trailing "area" and collapses
// whitespace.
func NormalizeQuery(q string) (string, error) {
	s := strings.Join(strings.Fields(q), " ")
	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, p := range queryPrefixes {
			if strings.HasPrefix(lower, p) {
				s = strings.TrimSpace(s[len(p):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}
	if lower := strings.ToLower(s); strings.HasSuffix(lower, " area") {
		s = strings.TrimSpace(s[:len(s)-len(" area")])
	}
	if len([]rune(s)) < 2 {
		return "", ErrInvalidQuery
	}
	return s, nil
}

// Geocode normalizes the query, consults the cache, and walks the provider
// chain. Concurrent identical lookups share one provider round trip.
func (g *geocoder) Geocode(ctx context.Context, query, country string) (*Result, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	key := cacheKey(q, country)

	if r, ok := g.cache.get(key); ok {
		zap.L().Debug("geocode cache hit", zap.String("query", q), zap.Bool("matched", r.Matched))
		return r, nil
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		r, err := g.resolve(ctx, q, country)
		if err != nil {
			return nil, err
		}
		g.cache.set(key, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r := *v.(*Result)
	return &r, nil
}

func (g *geocoder) resolve(ctx context.Context, q, country string) (*Result, error) {
	if country == "" || country == "SG" {
		if a, ok := g.areas.Lookup(q); ok {
			return &Result{
				Latitude:  a.Lat,
				Longitude: a.Lng,
				Label:     a.Name,
				Source:    sourceLocal,
				Quality:   "centroid",
				Matched:   true,
			}, nil
		}
	}

	var lastErr error
	if g.googleKey != "" {
		r, err := g.geocodeGoogle(ctx, q, country)
		if err == nil && r.Matched {
			return r, nil
		}
		if err != nil {
			zap.L().Debug("geocode: google failed, trying nominatim", zap.String("query", q), zap.Error(err))
			lastErr = err
		}
	}

	r, err := g.geocodeNominatim(ctx, q, country)
	if err != nil {
		if lastErr != nil {
			return nil, eris.Wrapf(err, "geocode: all providers failed (google: %v)", lastErr)
		}
		return nil, err
	}
	return r, nil
}
