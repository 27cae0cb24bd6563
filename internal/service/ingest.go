package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/raphaelgruber/litlab/internal/parser"
)

// BatchEmbedder embeds many passages at once.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter appends embedded passages to a document.
type ChunkWriter interface {
	Insert(ctx context.Context, documentID string, inputs []models.ChunkInput) ([]models.Chunk, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// IngestService chunks, embeds and stores source documents.
type IngestService struct {
	docs     DocumentStore
	chunks   ChunkWriter
	embedder BatchEmbedder
	chunking parser.ChunkConfig
}

// NewIngestService creates a new ingest service.
func NewIngestService(docs DocumentStore, chunks ChunkWriter, embedder BatchEmbedder, chunking parser.ChunkConfig) *IngestService {
	return &IngestService{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		chunking: chunking.Normalize(),
	}
}

// IngestRequest is one document to ingest.
type IngestRequest struct {
	ProjectID string
	Title     string
	Text      string
}

// IngestResult summarizes an ingestion operation.
type IngestResult struct {
	Documents []models.Document
	Errors    []string
}

// IngestText chunks and embeds text and stores it as a new document.
func (s *IngestService) IngestText(ctx context.Context, req IngestRequest) (*models.Document, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}

	pieces := parser.ChunkWords(req.Text, s.chunking)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %q has no text", models.ErrEmptyCorpus, req.Title)
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Content
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	doc := &models.Document{
		ID:         uuid.New().String(),
		ProjectID:  req.ProjectID,
		Title:      strings.TrimSpace(req.Title),
		ChunkCount: len(pieces),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	inputs := make([]models.ChunkInput, len(pieces))
	for i := range pieces {
		inputs[i] = models.ChunkInput{Text: texts[i], Embedding: vectors[i]}
	}
	if _, err := s.chunks.Insert(ctx, doc.ID, inputs); err != nil {
		if delErr := s.chunks.DeleteDocument(ctx, doc.ID); delErr != nil {
			slog.Warn("failed to clean up partial document", "document_id", doc.ID, "error", delErr)
		}
		return nil, err
	}

	slog.Info("document ingested",
		"document_id", doc.ID,
		"project_id", doc.ProjectID,
		"title", doc.Title,
		"chunks", doc.ChunkCount,
		"duration_ms", time.Since(start).Milliseconds())
	return doc, nil
}

// IngestFile loads a .md or text file and ingests it. An empty title uses
// the file's own title.
func (s *IngestService) IngestFile(ctx context.Context, projectID, path, title string) (*models.Document, error) {
	src, err := parser.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if title == "" {
		title = src.Title
	}
	return s.IngestText(ctx, IngestRequest{ProjectID: projectID, Title: title, Text: src.Text})
}

// CollectFiles returns the .md and .txt files under dirPath.
func (s *IngestService) CollectFiles(dirPath string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dirPath && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".txt":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// IngestDirectory ingests every supported file under dirPath as its own
// document. Per-file failures are collected instead of aborting.
func (s *IngestService) IngestDirectory(ctx context.Context, projectID, dirPath string, recursive bool) (*IngestResult, error) {
	files, err := s.CollectFiles(dirPath, recursive)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	result := &IngestResult{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		doc, err := s.IngestFile(ctx, projectID, f, "")
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		result.Documents = append(result.Documents, *doc)
	}
	return result, nil
}
