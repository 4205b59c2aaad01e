package syncer

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/model"
)

// ParseMode accepts "dry-run" or "apply" (case-insensitive, "dryrun" and
// "dry_run" tolerated).
func ParseMode(s string) (model.SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dry-run", "dryrun", "dry_run":
		return model.ModeDryRun, nil
	case "apply":
		return model.ModeApply, nil
	default:
		return "", eris.Errorf("syncer: invalid mode %q", s)
	}
}

// ResolveMode picks the run mode: an explicit request wins, then the
// configured default, then dry-run. An invalid request is an error; an
// invalid default falls back to dry-run.
func ResolveMode(requested, envDefault string) (model.SyncMode, error) {
	if strings.TrimSpace(requested) != "" {
		return ParseMode(requested)
	}
	if m, err := ParseMode(envDefault); err == nil {
		return m, nil
	}
	return model.ModeDryRun, nil
}
