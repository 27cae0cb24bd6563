package models

import "errors"

// Sentinel errors for the lab pipeline. Match with errors.Is.
var (
	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the rest of its document.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyCorpus indicates a document without chunks.
	ErrEmptyCorpus = errors.New("document has no chunks")

	// ErrInvalidQuery indicates a malformed retrieval query.
	ErrInvalidQuery = errors.New("invalid retrieval query")

	// ErrEmbeddingUnavailable indicates the embedding provider failed.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrInsufficientScored indicates too few sampled passages received an
	// arousal score.
	ErrInsufficientScored = errors.New("insufficient scored passages")

	// ErrGenerationFailed indicates the generator failed or returned no
	// usable lesson.
	ErrGenerationFailed = errors.New("lesson generation failed")

	// ErrAlreadyRunning indicates the project already has an active lab job.
	ErrAlreadyRunning = errors.New("lab job already running")

	// ErrNotFound indicates an unknown job, lesson or document.
	ErrNotFound = errors.New("not found")
)

// UserMessage maps an error to a short message for end users.
// The full error chain belongs in operator logs, not here.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuery):
		return "The lab request is incomplete. Add some context or choose a lesson to remix."
	case errors.Is(err, ErrAlreadyRunning):
		return "A lab job is already running for this project. Wait for it to finish."
	case errors.Is(err, ErrEmptyCorpus):
		return "This document has no indexed passages yet."
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "Search is temporarily unavailable. Please try again shortly."
	case errors.Is(err, ErrInsufficientScored):
		return "Not enough passages could be rated. Please try again."
	case errors.Is(err, ErrGenerationFailed):
		return "Lesson generation failed. Please try again."
	case errors.Is(err, ErrNotFound):
		return "The requested item could not be found."
	case errors.Is(err, ErrDimensionMismatch):
		return "The document index does not match the current embedding model. Re-ingest the document."
	default:
		return "Something went wrong while generating lessons."
	}
}

// IsKnown reports whether err wraps one of the sentinels above.
func IsKnown(err error) bool {
	for _, s := range []error{
		ErrDimensionMismatch, ErrEmptyCorpus, ErrInvalidQuery, ErrEmbeddingUnavailable,
		ErrInsufficientScored, ErrGenerationFailed, ErrAlreadyRunning, ErrNotFound,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
