package fetcher

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/foodguide/stallsync/internal/model"
)

// ArtifactPaths returns the CSV and JSON artifact paths for a source key.
func ArtifactPaths(dir, key string) (csvPath, jsonPath string) {
	return filepath.Join(dir, key+".csv"), filepath.Join(dir, key+".places.json")
}

// ArtifactsExist reports whether both artifacts for key are present. An
// empty dir means no artifacts are expected.
func ArtifactsExist(dir, key string) bool {
	if dir == "" {
		return true
	}
	csvPath, jsonPath := ArtifactPaths(dir, key)
	for _, p := range []string{csvPath, jsonPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// WriteArtifacts stores the normalized snapshot and its parsed places under dir.
func WriteArtifacts(dir string, snap *Snapshot, places []model.SourceFoodPlace) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "fetcher: create artifact dir")
	}
	csvPath, jsonPath := ArtifactPaths(dir, snap.Source.Key)
	if err := os.WriteFile(csvPath, []byte(snap.Text), 0o644); err != nil {
		return eris.Wrapf(err, "fetcher: write %s", csvPath)
	}
	data, err := json.MarshalIndent(places, "", "  ")
	if err != nil {
		return eris.Wrap(err, "fetcher: marshal places")
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "fetcher: write %s", jsonPath)
	}
	return nil
}
