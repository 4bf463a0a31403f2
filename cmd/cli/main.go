// ideahub-admin is an operator CLI that works directly against the
// database: rebuilding leaderboard snapshots and inspecting the review
// job queue.
package main

import (
	"fmt"
	"os"

	"github.com/ideahub/backend/internal/database"
	"github.com/ideahub/backend/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ideahub-admin",
	Short: "IdeaHub admin CLI",
	Long:  `Operator commands for the IdeaHub backend: leaderboard maintenance and review queue inspection.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
			return err
		}
		return database.Initialize()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		database.Close()
		logger.Close()
	},
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(jobsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
