package main

import (
	"fmt"

	"github.com/ideahub/backend/internal/database"
	"github.com/ideahub/backend/internal/models"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the AI review job queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		type row struct {
			Status string
			N      int64
		}
		var rows []row
		err := database.DB.WithContext(cmd.Context()).
			Model(&models.AiJob{}).
			Select("status, COUNT(*) as n").
			Group("status").
			Order("status").
			Scan(&rows).Error
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Println("No review jobs.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%-10s %d\n", r.Status, r.N)
		}

		var failed []models.AiJob
		err = database.DB.WithContext(cmd.Context()).
			Where("status = ?", models.JobStatusFailed).
			Order("finished_at DESC").
			Limit(10).
			Find(&failed).Error
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			fmt.Println("\nRecent failures:")
			for _, j := range failed {
				fmt.Printf("  %s idea=%s attempts=%d error=%q\n", j.ID, j.IdeaID, j.Attempts, j.LastError)
			}
		}
		return nil
	},
}

var retryJobCmd = &cobra.Command{
	Use:   "retry-job <job-id>",
	Short: "Requeue a failed review job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := database.DB.WithContext(cmd.Context()).
			Model(&models.AiJob{}).
			Where("id = ? AND status = ?", args[0], models.JobStatusFailed).
			Updates(map[string]interface{}{
				"status":      models.JobStatusPending,
				"attempts":    0,
				"last_error":  "",
				"finished_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("no failed job with id %s", args[0])
		}

		fmt.Printf("Job %s requeued\n", args[0])
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(retryJobCmd)
}
