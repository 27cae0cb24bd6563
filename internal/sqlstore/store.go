// Package sqlstore persists documents, chunks, lab jobs and lessons in a
// local SQLite file through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// errNotProcessing rolls back CompleteJob when the job left processing.
var errNotProcessing = errors.New("job is not processing")

// Store is a gorm-backed SQLite store.
type Store struct {
	db      *gorm.DB
	log     *slog.Logger
	metrics *metrics.Collector
}

// Open opens (or creates) the SQLite database at path and migrates the
// schema. log and m may be nil.
func Open(ctx context.Context, path string, log *slog.Logger, m *metrics.Collector) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between
	// our own goroutines.
	sqlDB.SetMaxOpenConns(1)

	s := &Store{db: db, log: log, metrics: m}
	if err := s.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("sqlite store ready", "path", path)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&documentRow{}, &chunkRow{}, &jobRow{}, &lessonRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// timed records the duration of one database operation. Lookups that miss
// and rejected duplicate jobs are not failures.
func (s *Store) timed(fn func() error) error {
	return s.metrics.Time(metrics.OpDBQuery, fn, expectedErr)
}

func expectedErr(err error) bool {
	return errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrAlreadyRunning)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Documents

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	row := fromDocument(doc)
	return s.timed(func() error {
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return nil
	})
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var row documentRow
	err := s.timed(func() error {
		err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	doc := row.toModel()
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]models.Document, error) {
	var rows []documentRow
	err := s.timed(func() error {
		return s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]models.Document, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Chunks

func (s *Store) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var rows []chunkRow
	err := s.timed(func() error {
		return s.db.WithContext(ctx).Where("document_id = ?", documentID).Order("position ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	out := make([]models.Chunk, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = fromChunk(c)
	}
	return s.timed(func() error {
		if err := s.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
}

// DeleteChunks removes a document's chunks and its header row.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	return s.timed(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("document_id = ?", documentID).Delete(&chunkRow{}).Error; err != nil {
				return fmt.Errorf("delete chunks: %w", err)
			}
			if err := tx.Where("id = ?", documentID).Delete(&documentRow{}).Error; err != nil {
				return fmt.Errorf("delete document: %w", err)
			}
			return nil
		})
	})
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, job *models.LabJob) error {
	row, err := fromJob(job)
	if err != nil {
		return err
	}
	return s.timed(func() error {
		err := s.db.WithContext(ctx).Create(&row).Error
		if isUniqueViolation(err) {
			return fmt.Errorf("project %s: %w", job.ProjectID, models.ErrAlreadyRunning)
		}
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return nil
	})
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.LabJob, error) {
	var row jobRow
	err := s.timed(func() error {
		err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *Store) ClaimJob(ctx context.Context, id string, now time.Time) (bool, error) {
	var claimed bool
	err := s.timed(func() error {
		res := s.db.WithContext(ctx).Model(&jobRow{}).
			Where("id = ? AND state = ?", id, string(models.JobStateQueued)).
			Updates(map[string]any{
				"state":      string(models.JobStateProcessing),
				"started_at": now.UTC(),
				"attempts":   gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("claim job: %w", res.Error)
		}
		claimed = res.RowsAffected > 0
		return nil
	})
	return claimed, err
}

func (s *Store) CompleteJob(ctx context.Context, id string, lessons []models.MicroLesson, now time.Time) (bool, error) {
	ids := make([]string, len(lessons))
	rows := make([]lessonRow, len(lessons))
	for i, l := range lessons {
		ids[i] = l.ID
		rows[i] = fromLesson(l)
	}

	err := s.timed(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&jobRow{}).
				Where("id = ? AND state = ?", id, string(models.JobStateProcessing)).
				Updates(map[string]any{
					"state":          string(models.JobStateSucceeded),
					"lesson_ids":     jsonStrings(ids),
					"completed_at":   now.UTC(),
					"active_project": nil,
					"error":          "",
					"error_detail":   "",
				})
			if res.Error != nil {
				return fmt.Errorf("complete job: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return errNotProcessing
			}
			if len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return fmt.Errorf("insert lessons: %w", err)
				}
			}
			return nil
		})
	})
	if errors.Is(err, errNotProcessing) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) FailJob(ctx context.Context, id, message, detail string, now time.Time) (bool, error) {
	var failed bool
	err := s.timed(func() error {
		res := s.db.WithContext(ctx).Model(&jobRow{}).
			Where("id = ? AND state IN ?", id, []string{string(models.JobStateQueued), string(models.JobStateProcessing)}).
			Updates(map[string]any{
				"state":          string(models.JobStateFailed),
				"error":          message,
				"error_detail":   detail,
				"completed_at":   now.UTC(),
				"active_project": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("fail job: %w", res.Error)
		}
		failed = res.RowsAffected > 0
		return nil
	})
	return failed, err
}

func (s *Store) ListStale(ctx context.Context, queuedBefore, startedBefore time.Time) ([]models.LabJob, error) {
	var rows []jobRow
	err := s.timed(func() error {
		return s.db.WithContext(ctx).
			Where("(state = ? AND created_at < ?) OR (state = ? AND started_at < ?)",
				string(models.JobStateQueued), queuedBefore.UTC(),
				string(models.JobStateProcessing), startedBefore.UTC()).
			Order("created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	out := make([]models.LabJob, 0, len(rows))
	for _, r := range rows {
		job, err := r.toModel()
		if err != nil {
			s.log.Warn("skipping undecodable job", "job_id", r.ID, "error", err)
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

// Lessons

func (s *Store) GetLesson(ctx context.Context, id string) (*models.MicroLesson, error) {
	var row lessonRow
	err := s.timed(func() error {
		err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lesson %s: %w", id, models.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	l := row.toModel()
	return &l, nil
}

func (s *Store) ListLessons(ctx context.Context, projectID string) ([]models.MicroLesson, error) {
	var rows []lessonRow
	err := s.timed(func() error {
		return s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("order_index ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	out := make([]models.MicroLesson, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) MaxOrderIndex(ctx context.Context, projectID string) (int, error) {
	var maxIndex int
	err := s.timed(func() error {
		return s.db.WithContext(ctx).Model(&lessonRow{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(MAX(order_index), -1)").
			Scan(&maxIndex).Error
	})
	if err != nil {
		return 0, fmt.Errorf("max order index: %w", err)
	}
	return maxIndex, nil
}
