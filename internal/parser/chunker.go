package parser

import (
	"strings"
)

// ChunkResult represents a chunk of content.
type ChunkResult struct {
	Content  string
	Position int
}

// ChunkConfig defines word-window chunking parameters.
type ChunkConfig struct {
	// SizeWords: words per chunk (minimum 80)
	SizeWords int
	// OverlapWords: words shared with the previous chunk (10 to SizeWords/2)
	OverlapWords int
	// MaxChunks: chunks emitted per document; the rest of the text is dropped
	MaxChunks int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		SizeWords:    220,
		OverlapWords: 60,
		MaxChunks:    256,
	}
}

// Normalize clamps the config into its valid range. Zero values take the
// defaults.
func (c ChunkConfig) Normalize() ChunkConfig {
	def := DefaultChunkConfig()
	if c.SizeWords == 0 {
		c.SizeWords = def.SizeWords
	}
	c.SizeWords = max(80, c.SizeWords)

	if c.OverlapWords == 0 {
		c.OverlapWords = def.OverlapWords
	}
	c.OverlapWords = max(10, min(c.SizeWords/2, c.OverlapWords))

	if c.MaxChunks == 0 {
		c.MaxChunks = def.MaxChunks
	}
	c.MaxChunks = max(1, c.MaxChunks)
	return c
}

// NormalizeText collapses all whitespace runs to single spaces.
func NormalizeText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ChunkWords splits text into overlapping windows of words. Each window
// starts SizeWords-OverlapWords words after the previous one; the last
// window ends at the final word.
func ChunkWords(text string, config ChunkConfig) []ChunkResult {
	config = config.Normalize()
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := config.SizeWords - config.OverlapWords
	var chunks []ChunkResult
	for start := 0; start < len(words); start += step {
		end := min(len(words), start+config.SizeWords)
		chunks = append(chunks, ChunkResult{
			Content:  strings.Join(words[start:end], " "),
			Position: len(chunks),
		})
		if end >= len(words) || len(chunks) >= config.MaxChunks {
			break
		}
	}
	return chunks
}
