package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodguide/stallsync/internal/model"
)

func TestResolveMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		requested string
		def       string
		want      model.SyncMode
		wantErr   bool
	}{
		{"request wins", "apply", "dry-run", model.ModeApply, false},
		{"request dry-run over apply default", "dry-run", "apply", model.ModeDryRun, false},
		{"default used", "", "apply", model.ModeApply, false},
		{"fail-safe", "", "", model.ModeDryRun, false},
		{"invalid default is fail-safe", "", "bogus", model.ModeDryRun, false},
		{"case and spelling", " DRYRUN ", "apply", model.ModeDryRun, false},
		{"invalid request", "write", "apply", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveMode(tt.requested, tt.def)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid mode")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
