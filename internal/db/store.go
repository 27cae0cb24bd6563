package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// rows returns the result set of the first statement.
func rows[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// Documents

func (c *Client) CreateDocument(ctx context.Context, doc *models.Document) error {
	return c.timed(func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			CREATE type::record("document", $id) SET
				project_id = $project_id,
				title = $title,
				chunk_count = $chunk_count
		`, map[string]any{
			"id":          doc.ID,
			"project_id":  doc.ProjectID,
			"title":       doc.Title,
			"chunk_count": doc.ChunkCount,
		})
		if err != nil {
			return fmt.Errorf("create document: %w", wrapQueryError(err))
		}
		return nil
	})
}

func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var recs []documentRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]documentRecord](ctx, c.db,
			`SELECT * FROM type::record("document", $id)`, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	doc, err := recs[0].toModel()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) ListDocuments(ctx context.Context, projectID string) ([]models.Document, error) {
	var recs []documentRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]documentRecord](ctx, c.db,
			`SELECT * FROM document WHERE project_id = $project ORDER BY created ASC`,
			map[string]any{"project": projectID})
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Document, 0, len(recs))
	for _, r := range recs {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Chunks

func (c *Client) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var recs []chunkRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]chunkRecord](ctx, c.db,
			`SELECT * FROM chunk WHERE document_id = $doc ORDER BY position ASC`,
			map[string]any{"doc": documentID})
		if err != nil {
			return fmt.Errorf("list chunks: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Chunk, 0, len(recs))
	for _, r := range recs {
		ch, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func (c *Client) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	content := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		content[i] = map[string]any{
			"id":          ch.ID,
			"document_id": ch.DocumentID,
			"position":    ch.Position,
			"text":        ch.Text,
			"embedding":   ch.Embedding,
		}
	}
	return c.timed(func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `INSERT INTO chunk $chunks`, map[string]any{"chunks": content})
		if err != nil {
			return fmt.Errorf("insert chunks: %w", wrapQueryError(err))
		}
		return nil
	})
}

// DeleteChunks removes a document's chunks and its header record.
func (c *Client) DeleteChunks(ctx context.Context, documentID string) error {
	return c.timed(func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			BEGIN TRANSACTION;
			DELETE chunk WHERE document_id = $doc;
			DELETE type::record("document", $doc);
			COMMIT TRANSACTION;
		`, map[string]any{"doc": documentID})
		if err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		return nil
	})
}

// Jobs

// CreateJob stores a queued job together with the project's active_lab
// marker. A second active job for the project fails on the marker.
func (c *Client) CreateJob(ctx context.Context, job *models.LabJob) error {
	query, err := models.EncodeQuery(job.Query)
	if err != nil {
		return err
	}
	err = c.timed(func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			BEGIN TRANSACTION;
			CREATE type::record("active_lab", $project) SET job = $id;
			CREATE type::record("lab_job", $id) SET
				project_id = $project,
				document_id = $doc,
				mode = $mode,
				query = $query,
				direction = $direction,
				state = "queued",
				created = <datetime>$created;
			COMMIT TRANSACTION;
		`, map[string]any{
			"id":        job.ID,
			"project":   job.ProjectID,
			"doc":       job.DocumentID,
			"mode":      job.Mode(),
			"query":     string(query),
			"direction": job.Direction,
			"created":   rfc3339(job.CreatedAt),
		})
		return wrapQueryError(err)
	})
	if errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("project %s: %w", job.ProjectID, models.ErrAlreadyRunning)
	}
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*models.LabJob, error) {
	var recs []jobRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]jobRecord](ctx, c.db,
			`SELECT * FROM type::record("lab_job", $id)`, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return recs[0].toModel()
}

func (c *Client) ClaimJob(ctx context.Context, id string, now time.Time) (bool, error) {
	var recs []jobRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]jobRecord](ctx, c.db, `
			UPDATE type::record("lab_job", $id) SET
				state = "processing",
				started = <datetime>$now,
				attempts += 1
			WHERE state = "queued"
			RETURN AFTER
		`, map[string]any{"id": id, "now": rfc3339(now)})
		if err != nil {
			return fmt.Errorf("claim job: %w", wrapQueryError(err))
		}
		recs = rows(results)
		return nil
	})
	return len(recs) > 0, err
}

func (c *Client) CompleteJob(ctx context.Context, id string, lessons []models.MicroLesson, now time.Time) (bool, error) {
	ids := make([]string, len(lessons))
	content := make([]map[string]any, len(lessons))
	for i, l := range lessons {
		ids[i] = l.ID
		content[i] = lessonContent(l)
	}

	completed := false
	err := c.timed(func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			BEGIN TRANSACTION;
			LET $done = (UPDATE type::record("lab_job", $id) SET
				state = "succeeded",
				lesson_ids = $lesson_ids,
				completed = <datetime>$now,
				error = "",
				error_detail = ""
			WHERE state = "processing" RETURN AFTER);
			IF array::len($done) = 0 {
				THROW "`+throwNotProcessing+`"
			};
			IF array::len($lessons) > 0 {
				INSERT INTO micro_lesson $lessons;
			};
			DELETE active_lab WHERE job = $id;
			COMMIT TRANSACTION;
		`, map[string]any{
			"id":         id,
			"lesson_ids": ids,
			"lessons":    content,
			"now":        rfc3339(now),
		})
		if isThrown(err, throwNotProcessing) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("complete job: %w", wrapQueryError(err))
		}
		completed = true
		return nil
	})
	return completed, err
}

func (c *Client) FailJob(ctx context.Context, id, message, detail string, now time.Time) (bool, error) {
	failed := false
	err := c.timed(func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			BEGIN TRANSACTION;
			LET $failed = (UPDATE type::record("lab_job", $id) SET
				state = "failed",
				error = $message,
				error_detail = $detail,
				completed = <datetime>$now
			WHERE state IN ["queued", "processing"] RETURN AFTER);
			IF array::len($failed) = 0 {
				THROW "`+throwTerminal+`"
			};
			DELETE active_lab WHERE job = $id;
			COMMIT TRANSACTION;
		`, map[string]any{
			"id":      id,
			"message": message,
			"detail":  detail,
			"now":     rfc3339(now),
		})
		if isThrown(err, throwTerminal) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fail job: %w", wrapQueryError(err))
		}
		failed = true
		return nil
	})
	return failed, err
}

func (c *Client) ListStale(ctx context.Context, queuedBefore, startedBefore time.Time) ([]models.LabJob, error) {
	var recs []jobRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]jobRecord](ctx, c.db, `
			SELECT * FROM lab_job
			WHERE (state = "queued" AND created < <datetime>$queued_before)
			   OR (state = "processing" AND started < <datetime>$started_before)
			ORDER BY created ASC
		`, map[string]any{
			"queued_before":  rfc3339(queuedBefore),
			"started_before": rfc3339(startedBefore),
		})
		if err != nil {
			return fmt.Errorf("list stale jobs: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.LabJob, 0, len(recs))
	for _, r := range recs {
		job, err := r.toModel()
		if err != nil {
			slog.Warn("skipping undecodable job", "error", err)
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

// Lessons

func (c *Client) GetLesson(ctx context.Context, id string) (*models.MicroLesson, error) {
	var recs []lessonRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]lessonRecord](ctx, c.db,
			`SELECT * FROM type::record("micro_lesson", $id)`, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("get lesson: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("lesson %s: %w", id, models.ErrNotFound)
	}
	l, err := recs[0].toModel()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) ListLessons(ctx context.Context, projectID string) ([]models.MicroLesson, error) {
	var recs []lessonRecord
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]lessonRecord](ctx, c.db,
			`SELECT * FROM micro_lesson WHERE project_id = $project ORDER BY order_index ASC`,
			map[string]any{"project": projectID})
		if err != nil {
			return fmt.Errorf("list lessons: %w", err)
		}
		recs = rows(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.MicroLesson, 0, len(recs))
	for _, r := range recs {
		l, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Client) MaxOrderIndex(ctx context.Context, projectID string) (int, error) {
	var indexes []int
	err := c.timed(func() error {
		results, err := surrealdb.Query[[]int](ctx, c.db, `
			SELECT VALUE order_index FROM micro_lesson
			WHERE project_id = $project
			ORDER BY order_index DESC LIMIT 1
		`, map[string]any{"project": projectID})
		if err != nil {
			return fmt.Errorf("max order index: %w", err)
		}
		indexes = rows(results)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(indexes) == 0 {
		return -1, nil
	}
	return indexes[0], nil
}
