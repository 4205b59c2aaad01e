package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/syncer"
)

var (
	syncMode  string
	syncForce bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one spreadsheet to catalog sync",
	Long:  "Fetches every configured source, diffs it against the catalog and, in apply mode, writes the plan. Dry-run is the default.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSyncEnv(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Syncer.Run(ctx, syncer.Request{
			Mode:    syncMode,
			Force:   syncForce,
			Trigger: model.TriggerCLI,
		})
		if perr := printSummary(cmd.OutOrStdout(), summary); perr != nil {
			return perr
		}
		return err
	},
}

// printSummary writes the run summary as indented JSON.
func printSummary(w io.Writer, summary *model.SyncRunSummary) error {
	if summary == nil {
		return nil
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal summary")
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func init() {
	syncCmd.Flags().StringVar(&syncMode, "mode", "", "dry-run or apply (default from sync.mode)")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "apply even when the change ratio exceeds sync.max_change_ratio")
	rootCmd.AddCommand(syncCmd)
}
