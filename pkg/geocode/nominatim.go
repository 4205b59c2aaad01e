package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
}

// geocodeNominatim queries the OpenStreetMap Nominatim search API. Nominatim
// requires an identifying User-Agent and at most one request per second.
func (g *geocoder) geocodeNominatim(ctx context.Context, q, country string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {q},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if country != "" {
		params.Set("countrycodes", strings.ToLower(country))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.nominatimURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return &Result{Matched: false, Source: sourceNominatim}, nil
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim lat %q", p.Lat)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim lon %q", p.Lon)
	}
	return &Result{
		Latitude:  lat,
		Longitude: lng,
		Label:     p.DisplayName,
		Source:    sourceNominatim,
		Quality:   nominatimQuality(p.Category),
		Matched:   true,
	}, nil
}

func nominatimQuality(category string) string {
	switch category {
	case "building", "amenity", "shop":
		return "rooftop"
	case "highway":
		return "range"
	case "place", "boundary":
		return "centroid"
	default:
		return "approximate"
	}
}
