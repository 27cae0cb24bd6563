package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents or lessons of a project",
	Long: `List the documents or micro-lessons of a project.

Subcommands:
  lessons    List lessons in order (default)
  documents  List ingested documents

Examples:
  litlab list --project whales
  litlab list documents --project whales
  litlab list lessons -v`,
	RunE: runListLessons,
}

var listLessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "List lessons in order",
	RunE:  runListLessons,
}

var listDocumentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents",
	RunE:  runListDocuments,
}

func init() {
	listCmd.AddCommand(listLessonsCmd)
	listCmd.AddCommand(listDocumentsCmd)
}

func runListLessons(cmd *cobra.Command, args []string) error {
	projectID, err := projectID()
	if err != nil {
		return err
	}

	lessons, err := lab.Search.ListLessons(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}

	if len(lessons) == 0 {
		fmt.Println("No lessons found.")
		return nil
	}

	fmt.Printf("Lessons (%d):\n\n", len(lessons))
	for i := range lessons {
		printLesson(&lessons[i])
	}
	return nil
}

func runListDocuments(cmd *cobra.Command, args []string) error {
	projectID, err := projectID()
	if err != nil {
		return err
	}

	docs, err := lab.Search.ListDocuments(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	fmt.Printf("%-36s %-40s %-7s %s\n", "ID", "TITLE", "CHUNKS", "INGESTED")
	fmt.Println("------------------------------------------------------------------------------------------------------")
	for _, d := range docs {
		fmt.Printf("%-36s %-40s %-7d %s\n", d.ID, truncate(d.Title, 40), d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
