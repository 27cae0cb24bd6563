// Package parser turns source files into plain text and word-window chunks.
package parser

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownDoc represents a parsed Markdown document.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title extracted from first h1 or frontmatter
	Title string

	// Main content (after frontmatter)
	Content string
}

// ParseMarkdown parses a Markdown document into structured form.
func ParseMarkdown(content string) (*MarkdownDoc, error) {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
	}

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx > 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				// Ignore YAML errors, just use empty frontmatter
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Content = remaining
	doc.Title = extractTitle(doc.Frontmatter, remaining)
	return doc, nil
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimPrefix(line, "# ")
		}
	}
	return ""
}

var (
	headingPattern  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisPattern = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
	linkPattern     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
)

// PlainText strips Markdown markup that would otherwise end up in passages.
func (d *MarkdownDoc) PlainText() string {
	text := headingPattern.ReplaceAllString(d.Content, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = emphasisPattern.ReplaceAllString(text, "$1")
	return text
}

// Source is a loaded document ready for chunking.
type Source struct {
	Title string
	Text  string
}

// LoadFile reads a .md or plain text file. The title falls back to the file
// name without extension.
func LoadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	fallback := strings.TrimSuffix(base, filepath.Ext(base))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		doc, err := ParseMarkdown(string(data))
		if err != nil {
			return nil, err
		}
		title := doc.Title
		if title == "" {
			title = fallback
		}
		return &Source{Title: title, Text: NormalizeText(doc.PlainText())}, nil
	default:
		return &Source{Title: fallback, Text: NormalizeText(string(data))}, nil
	}
}
