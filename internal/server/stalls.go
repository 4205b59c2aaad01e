package server

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/store"
)

const (
	defaultStallLimit = 100
	maxStallLimit     = 1000
)

func intParam(q string, def int) (int, bool) {
	if q == "" {
		return def, true
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// handleStalls lists catalog entries. status defaults to active; "all"
// lifts the filter.
func (s *Server) handleStalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := intParam(q.Get("limit"), defaultStallLimit)
	if !ok || limit == 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxStallLimit)
	offset, ok := intParam(q.Get("offset"), 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	status := strings.ToLower(q.Get("status"))
	switch status {
	case "":
		status = string(model.StallActive)
	case "all":
		status = ""
	case string(model.StallActive), string(model.StallInactive):
	default:
		writeError(w, http.StatusBadRequest, "status must be active, inactive or all")
		return
	}

	filter := store.StallFilter{
		Cuisine: q.Get("cuisine"),
		Country: strings.ToUpper(q.Get("country")),
		Status:  status,
		Limit:   limit,
		Offset:  offset,
	}
	stalls, err := s.catalog.ListStalls(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list stalls", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list stalls failed")
		return
	}
	if stalls == nil {
		stalls = []model.StallRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stalls": stalls,
		"count":  len(stalls),
		"limit":  limit,
		"offset": offset,
	})
}
