package cli

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/spf13/cobra"
)

var (
	jobsWait    bool
	jobsTimeout time.Duration
)

var jobsCmd = &cobra.Command{
	Use:   "jobs <job-id>",
	Short: "Inspect a lab job",
	Long: `Show the state of a lab job and, once it succeeded, its lessons.

Examples:
  litlab jobs 3c7e...
  litlab jobs 3c7e... --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsWait, "wait", "w", false, "wait for the job to finish")
	jobsCmd.Flags().DurationVar(&jobsTimeout, "timeout", pollDeadline, "how long --wait polls before giving up")
}

func runJobs(cmd *cobra.Command, args []string) error {
	job, err := lab.Coordinator.Status(cmd.Context(), args[0])
	if err != nil {
		return userError("get job", err)
	}

	if jobsWait && !job.State.IsTerminal() {
		waited, err := RunJobProgress(lab.Coordinator.Status, job, jobsTimeout)
		if waited != nil {
			job = waited
		}
		if err != nil && job.State != models.JobStateFailed {
			return err
		}
	}

	showJob(job)
	if job.State == models.JobStateSucceeded && len(job.LessonIDs) > 0 {
		return printJobLessons(cmd, job)
	}
	return nil
}

func showJob(job *models.LabJob) {
	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Project: %s\n", job.ProjectID)
	fmt.Printf("  Document: %s\n", job.DocumentID)
	fmt.Printf("  Mode: %s\n", job.Mode())
	fmt.Printf("  State: %s\n", job.State)
	if job.Direction != "" {
		fmt.Printf("  Direction: %s\n", job.Direction)
	}
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond))
		}
	}
	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
		if verbose && job.ErrorDetail != "" {
			fmt.Printf("  Detail: %s\n", job.ErrorDetail)
		}
	}
}
