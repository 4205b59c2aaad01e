package main

import (
	"github.com/spf13/cobra"
)

var backfillApply bool

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill missing videos or coordinates on existing stalls",
}

var backfillVideosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Match channel uploads to stalls without a video",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSyncEnv(ctx, "backfill-videos")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Syncer.BackfillVideos(ctx, backfillApply)
		if perr := printSummary(cmd.OutOrStdout(), summary); perr != nil {
			return perr
		}
		return err
	},
}

var backfillGeoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Geocode stalls still at 0,0",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSyncEnv(ctx, "backfill-geo")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Syncer.BackfillGeo(ctx, backfillApply)
		if perr := printSummary(cmd.OutOrStdout(), summary); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	backfillCmd.PersistentFlags().BoolVar(&backfillApply, "apply", false, "write results (default is a dry-run report)")
	backfillCmd.AddCommand(backfillVideosCmd, backfillGeoCmd)
	rootCmd.AddCommand(backfillCmd)
}
