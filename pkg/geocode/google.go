package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type googleReply struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []googleMatch `json:"results"`
}

type googleMatch struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
}

func (g *geocoder) googleRequest(ctx context.Context, q, country string) (*http.Request, error) {
	params := url.Values{}
	params.Set("address", q)
	params.Set("key", g.googleKey)
	if country != "" {
		// components restricts, region only biases; send both.
		params.Set("components", "country:"+country)
		params.Set("region", strings.ToLower(country))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.googleURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}
	return req, nil
}

// geocodeGoogle asks the Google Geocoding API. ZERO_RESULTS is an unmatched
// result; any other non-OK status is an error so the caller can fall back.
func (g *geocoder) geocodeGoogle(ctx context.Context, q, country string) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	req, err := g.googleRequest(ctx, q, country)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google http %d", resp.StatusCode)
	}

	var reply googleReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, eris.Wrap(err, "geocode: google decode")
	}

	miss := &Result{Source: sourceGoogle}
	switch reply.Status {
	case "OK":
		if len(reply.Results) == 0 {
			return miss, nil
		}
	case "ZERO_RESULTS":
		return miss, nil
	default:
		if reply.ErrorMessage != "" {
			return nil, eris.Errorf("geocode: google %s: %s", reply.Status, reply.ErrorMessage)
		}
		return nil, eris.Errorf("geocode: google %s", reply.Status)
	}

	top := reply.Results[0]
	return &Result{
		Latitude:  top.Geometry.Location.Lat,
		Longitude: top.Geometry.Location.Lng,
		Label:     top.FormattedAddress,
		Source:    sourceGoogle,
		Quality:   googleQuality(top.Geometry.LocationType),
		Matched:   true,
	}, nil
}

func googleQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	}
	return "approximate"
}
