package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/raphaelgruber/litlab/internal/service"
	"github.com/spf13/cobra"
)

var (
	labDocument  string
	labContext   string
	labRemix     string
	labRandom    bool
	labSample    int
	labTopK      int
	labDirection string
	labWait      bool
	labTimeout   time.Duration
)

var labCmd = &cobra.Command{
	Use:   "lab",
	Short: "Generate micro-lessons from a document",
	Long: `Submit a lab job that retrieves passages and turns them into lessons.

Directed jobs need --context, --remix or both. Random jobs sample passages
and keep the most emotionally intense ones; they produce at most two
lessons. Only one job per project may run at a time.

With --wait the command polls the job until it finishes (every 1s, backing
off to 8s, for up to --timeout).

Examples:
  litlab lab --document 5f1c... --context "how obsession consumes Ahab"
  litlab lab --document 5f1c... --remix 9a2e... --direction "make it darker"
  litlab lab --document 5f1c... --random --sample 40 --wait`,
	Args: cobra.NoArgs,
	RunE: runLab,
}

func init() {
	labCmd.Flags().StringVarP(&labDocument, "document", "d", "", "document id (required)")
	labCmd.Flags().StringVarP(&labContext, "context", "c", "", "what the lessons should be about")
	labCmd.Flags().StringVar(&labRemix, "remix", "", "lesson id whose text guides retrieval")
	labCmd.Flags().BoolVar(&labRandom, "random", false, "emotion-ranked random retrieval")
	labCmd.Flags().IntVar(&labSample, "sample", 0, "passages to sample in random mode")
	labCmd.Flags().IntVarP(&labTopK, "top-k", "n", 0, "passages handed to generation")
	labCmd.Flags().StringVar(&labDirection, "direction", "", "extra guidance for generation")
	labCmd.Flags().BoolVarP(&labWait, "wait", "w", false, "wait for the job to finish")
	labCmd.Flags().DurationVar(&labTimeout, "timeout", pollDeadline, "how long --wait polls before giving up")
	_ = labCmd.MarkFlagRequired("document")
}

func runLab(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	projectID, err := projectID()
	if err != nil {
		return err
	}

	// zero sizes take the configured defaults at submit time
	var query models.RetrievalQuery = models.DirectedQuery{
		QueryText:     strings.TrimSpace(labContext),
		RemixSourceID: strings.TrimSpace(labRemix),
		TopK:          labTopK,
	}
	if labRandom {
		query = models.EmotionRankedQuery{SampleSize: labSample, TopK: labTopK}
	}

	job, err := lab.Coordinator.Submit(ctx, service.SubmitRequest{
		ProjectID:  projectID,
		DocumentID: labDocument,
		Query:      query,
		Direction:  labDirection,
	})
	if err != nil {
		return userError("submit lab job", err)
	}

	if !job.State.IsTerminal() {
		fmt.Printf("Job %s %s (%s)\n", job.ID, job.State, job.Mode())
		if !labWait {
			fmt.Printf("Use 'litlab jobs %s' to check status.\n", job.ID)
			return nil
		}
		waited, err := RunJobProgress(lab.Coordinator.Status, job, labTimeout)
		if waited != nil {
			job = waited
		}
		if err != nil && job.State != models.JobStateFailed {
			return err
		}
	}

	switch job.State {
	case models.JobStateFailed:
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	case models.JobStateSucceeded:
		return printJobLessons(cmd, job)
	}
	return nil
}

func printJobLessons(cmd *cobra.Command, job *models.LabJob) error {
	fmt.Printf("\nLessons from job %s:\n\n", job.ID)
	for _, id := range job.LessonIDs {
		lesson, err := lab.Search.GetLesson(cmd.Context(), id)
		if err != nil {
			return userError("load lesson", err)
		}
		printLesson(lesson)
	}
	return nil
}

func printLesson(l *models.MicroLesson) {
	fmt.Printf("%d. %s\n", l.OrderIndex+1, l.Name)
	if l.Description != "" {
		fmt.Printf("   %s\n", l.Description)
	}
	if verbose {
		for _, s := range l.Slides {
			fmt.Printf("   [%d] %s\n", s.Position+1, strings.TrimSpace(s.Text))
		}
	}
	fmt.Printf("   ID: %s\n\n", l.ID)
}
