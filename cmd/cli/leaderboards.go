package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideahub/backend/internal/database"
	"github.com/ideahub/backend/internal/leaderboard"
	"github.com/ideahub/backend/internal/tags"
	"github.com/spf13/cobra"
)

var snapshotLimit int

var recomputeCmd = &cobra.Command{
	Use:   "recompute-leaderboards",
	Short: "Rebuild every persisted leaderboard snapshot",
	Long: `Recomputes a snapshot for every tag combination that has votes or an
existing snapshot. Intended for cron or one-off runs after data repairs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := leaderboard.NewService(database.DB, leaderboard.NewCache(time.Second))

		start := time.Now()
		rebuilt, err := svc.RebuildAll(cmd.Context(), snapshotLimit)
		if err != nil {
			return err
		}

		fmt.Printf("Rebuilt %d leaderboard(s) in %s\n", rebuilt, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build-leaderboard [tags...]",
	Short: "Build or refresh the snapshot for one tag combination",
	Long: `Builds the snapshot for the given tags (no tags means the global board).
Tags may be given as separate arguments or comma-separated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := leaderboard.NewService(database.DB, leaderboard.NewCache(time.Second))

		tagList := tags.NormalizeString(strings.Join(args, ","))
		snapshot, err := svc.BuildSnapshot(cmd.Context(), tagList, snapshotLimit)
		if err != nil {
			return err
		}

		key := snapshot.TagsKey
		if key == "" {
			key = "(global)"
		}
		fmt.Printf("Built %s with %d entries\n", key, len(snapshot.Entries))
		return nil
	},
}

func init() {
	recomputeCmd.Flags().IntVar(&snapshotLimit, "limit", 0, "max entries per snapshot (0 = default)")
	buildCmd.Flags().IntVar(&snapshotLimit, "limit", 0, "max entries per snapshot (0 = default)")
}
