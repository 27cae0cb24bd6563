package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queued lab jobs",
	Long: `Consume lab jobs from the Redis queue named by REDIS_ADDR and
LITLAB_QUEUE_KEY until interrupted. Jobs stuck queued or processing for
longer than LITLAB_JOB_STALE_AFTER are failed at start and every minute.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	w, err := lab.Worker()
	if err != nil {
		return err
	}

	fmt.Println("Worker running. Press Ctrl+C to stop.")
	if err := w.Run(cmd.Context()); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}
