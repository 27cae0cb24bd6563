package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ingestTitle     string
	ingestRecursive bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|directory>",
	Short: "Chunk, embed and store a document",
	Long: `Ingest a text or Markdown file as a document of the project.

A directory ingests every .md, .markdown and .txt file in it as its own
document. Markdown frontmatter and formatting are stripped first.

Examples:
  litlab ingest moby-dick.txt --project whales
  litlab ingest ./chapters --project whales --recursive
  litlab ingest notes.md --title "Field notes"`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (file ingestion only)")
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "descend into subdirectories")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	projectID, err := projectID()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		doc, err := lab.Ingest.IngestFile(ctx, projectID, path, ingestTitle)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		fmt.Printf("Ingested %q (%d chunks)\n", doc.Title, doc.ChunkCount)
		fmt.Printf("  Document ID: %s\n", doc.ID)
		return nil
	}

	result, err := lab.Ingest.IngestDirectory(ctx, projectID, path, ingestRecursive)
	if err != nil {
		return fmt.Errorf("ingest directory: %w", err)
	}

	fmt.Printf("Ingested %d documents into %s\n", len(result.Documents), projectID)
	for _, d := range result.Documents {
		fmt.Printf("  %s  %-40s %d chunks\n", d.ID, truncate(d.Title, 40), d.ChunkCount)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
