package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/litlab/internal/service"
	"github.com/spf13/cobra"
)

var (
	searchDocument string
	searchRemix    string
	searchRandom   bool
	searchSample   int
	searchTopK     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve passages from a document without generating lessons",
	Long: `Retrieve the passages a lab job would use, without creating a job.

Directed retrieval ranks passages by similarity to the query text and/or
to an existing lesson (--remix). Random retrieval samples passages and
keeps the most emotionally intense ones.

Examples:
  litlab search "the cost of obsession" --document 5f1c...
  litlab search --remix 9a2e... --document 5f1c...
  litlab search --random --sample 40 --top-k 5 --document 5f1c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchDocument, "document", "d", "", "document id (required)")
	searchCmd.Flags().StringVar(&searchRemix, "remix", "", "lesson id whose text guides retrieval")
	searchCmd.Flags().BoolVar(&searchRandom, "random", false, "emotion-ranked random retrieval")
	searchCmd.Flags().IntVar(&searchSample, "sample", 0, "passages to sample in random mode")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 0, "passages to return")
	_ = searchCmd.MarkFlagRequired("document")
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts := service.SearchOptions{
		DocumentID:    searchDocument,
		RemixSourceID: searchRemix,
		Random:        searchRandom,
		SampleSize:    searchSample,
		TopK:          searchTopK,
	}
	if len(args) == 1 {
		opts.Query = args[0]
	}

	results, err := lab.Search.RetrieveChunks(cmd.Context(), opts)
	if err != nil {
		return userError("search", err)
	}

	if len(results) == 0 {
		fmt.Println("No passages found.")
		return nil
	}

	scoreLabel := "similarity"
	if searchRandom {
		scoreLabel = "arousal"
	}
	fmt.Printf("Found %d passages:\n\n", len(results))
	for _, r := range results {
		fmt.Printf("%d. [chunk %d] %s %.3f\n", r.Rank, r.Chunk.Position, scoreLabel, r.Score)
		fmt.Printf("   %s\n\n", preview(r.Chunk.Text, 200))
	}
	return nil
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if verbose {
		return text
	}
	return truncate(text, n)
}
