package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/syncer"
)

const maxBodyBytes = 1 << 16

// triggerParams is the union of query, form and JSON body parameters.
type triggerParams struct {
	Mode  string
	Force bool
	Token string
}

// parseBoolish accepts the usual spellings plus numbers (non-zero is true).
func parseBoolish(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f != 0, nil
	}
	return false, eris.Errorf("invalid force value %q", s)
}

// jsonScalar is a JSON value that may be a string, number or bool.
type jsonScalar struct {
	set   bool
	value string
}

func (j *jsonScalar) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		j.value = t
	case bool:
		j.value = strconv.FormatBool(t)
	case float64:
		j.value = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return eris.Errorf("unsupported value %s", string(b))
	}
	j.set = true
	return nil
}

func parseTrigger(w http.ResponseWriter, r *http.Request) (triggerParams, error) {
	var (
		mode  = r.URL.Query().Get("mode")
		force = r.URL.Query().Get("force")
		token = r.URL.Query().Get("token")
	)

	if r.Method == http.MethodPost && r.ContentLength != 0 {
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "application/json":
			var body struct {
				Mode  jsonScalar `json:"mode"`
				Force jsonScalar `json:"force"`
				Token jsonScalar `json:"token"`
			}
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				return triggerParams{}, eris.Wrap(err, "invalid JSON body")
			}
			if body.Mode.set {
				mode = body.Mode.value
			}
			if body.Force.set {
				force = body.Force.value
			}
			if body.Token.set {
				token = body.Token.value
			}
		case "application/x-www-form-urlencoded":
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			if err := r.ParseForm(); err != nil {
				return triggerParams{}, eris.Wrap(err, "invalid form body")
			}
			mode = r.Form.Get("mode")
			force = r.Form.Get("force")
			token = r.Form.Get("token")
		}
	}

	f, err := parseBoolish(force)
	if err != nil {
		return triggerParams{}, err
	}
	return triggerParams{Mode: mode, Force: f, Token: token}, nil
}

func (s *Server) authorized(token string) bool {
	if s.adminToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) == 1
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	p, err := parseTrigger(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.authorized(p.Token) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if p.Mode != "" {
		if _, err := syncer.ParseMode(p.Mode); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %q", p.Mode))
			return
		}
	}

	// A client disconnect does not abort a run that may already be writing.
	ctx := context.WithoutCancel(r.Context())
	sum, err := s.runner.Run(ctx, syncer.Request{Mode: p.Mode, Force: p.Force, Trigger: model.TriggerHTTP})
	if sum == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprint(err))
		return
	}
	status := http.StatusOK
	if sum.Failed() {
		status = http.StatusInternalServerError
		zap.L().Warn("server: sync trigger failed", zap.String("run_id", sum.RunID), zap.Strings("errors", sum.Errors))
	}
	writeJSON(w, status, sum)
}
