package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export a project's lessons to Markdown files",
	Long: `Export the lessons of a project to Markdown files, one per lesson,
named by order so the directory lists them in sequence. Lesson metadata
is kept in YAML frontmatter.

Examples:
  litlab export ./lessons --project whales`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// lessonFrontmatter is the YAML header of an exported lesson.
type lessonFrontmatter struct {
	ID          string    `yaml:"id"`
	Project     string    `yaml:"project"`
	Order       int       `yaml:"order"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	SourceJob   string    `yaml:"source_job,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

func runExport(cmd *cobra.Command, args []string) error {
	exportPath := args[0]

	projectID, err := projectID()
	if err != nil {
		return err
	}

	lessons, err := lab.Search.ListLessons(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	if len(lessons) == 0 {
		fmt.Println("No lessons to export.")
		return nil
	}

	if err := os.MkdirAll(exportPath, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	fmt.Printf("Exporting %d lessons...\n", len(lessons))

	exported := 0
	for i := range lessons {
		l := &lessons[i]
		content, err := renderLesson(l)
		if err != nil {
			return fmt.Errorf("render lesson %s: %w", l.ID, err)
		}

		filename := filepath.Join(exportPath, lessonFilename(l))
		if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
			fmt.Printf("Warning: failed to write %s: %v\n", filename, err)
			continue
		}
		exported++

		if verbose {
			fmt.Printf("  Exported: %s\n", filename)
		}
	}

	fmt.Printf("\nExported %d lessons to %s\n", exported, exportPath)
	return nil
}

func lessonFilename(l *models.MicroLesson) string {
	slug := models.Slugify(l.Name)
	if slug == "" {
		slug = l.ID
	}
	return fmt.Sprintf("%03d-%s.md", l.OrderIndex+1, slug)
}

// renderLesson writes a lesson as Markdown with one section per slide.
func renderLesson(l *models.MicroLesson) (string, error) {
	fm, err := yaml.Marshal(lessonFrontmatter{
		ID:          l.ID,
		Project:     l.ProjectID,
		Order:       l.OrderIndex,
		Name:        l.Name,
		Description: l.Description,
		SourceJob:   l.SourceJobID,
		CreatedAt:   l.CreatedAt,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", l.Name)
	if l.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", l.Description)
	}
	for _, s := range l.Slides {
		fmt.Fprintf(&b, "## Slide %d\n\n%s\n\n", s.Position+1, strings.TrimSpace(s.Text))
	}
	return b.String(), nil
}
