package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/foodguide/stallsync/pkg/geocode"
)

type geocodeBody struct {
	Status string  `json:"status"`
	Source string  `json:"source"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Label  string  `json:"label"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoding is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	q := r.URL.Query()
	res, err := s.geocoder.Geocode(ctx, q.Get("q"), q.Get("country"))
	switch {
	case errors.Is(err, geocode.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "query must be at least 2 characters")
		return
	case err != nil:
		zap.L().Warn("server: geocode failed", zap.String("q", q.Get("q")), zap.Error(err))
		writeError(w, http.StatusBadGateway, "geocoding providers unavailable")
		return
	case !res.Matched:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, geocodeBody{
		Status: "ok",
		Source: res.Source,
		Lat:    res.Latitude,
		Lng:    res.Longitude,
		Label:  res.Label,
	})
}
