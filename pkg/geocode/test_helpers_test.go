package geocode

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newTestGeocoder points both providers at srvURL.
func newTestGeocoder(srvURL, googleKey string) *geocoder {
	return &geocoder{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		googleKey:    googleKey,
		googleURL:    srvURL + "/google",
		nominatimURL: srvURL + "/osm",
		userAgent:    "stallsync-test",
		limiter:      newTestLimiter(),
		cache:        newTTLCache(time.Minute),
		areas:        DefaultAreas(),
	}
}
