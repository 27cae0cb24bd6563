package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestPollBackOff_Schedule(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newPollBackOff(0)
	b.Clock = clock
	b.Reset()

	var got []time.Duration
	for range 5 {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}, got)

	clock.now = clock.now.Add(pollDeadline)
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func queuedJob() *models.LabJob {
	return &models.LabJob{
		ID:    "job-1",
		Query: models.DirectedQuery{QueryText: "whales"},
		State: models.JobStateQueued,
	}
}

func update(t *testing.T, m waitModel, msg any) waitModel {
	t.Helper()
	next, _ := m.Update(msg)
	wm, ok := next.(waitModel)
	require.True(t, ok)
	return wm
}

func TestWaitModel_Succeeded(t *testing.T) {
	m := newWaitModel(nil, queuedJob(), backoff.NewConstantBackOff(time.Millisecond))

	running := &models.LabJob{ID: "job-1", State: models.JobStateProcessing}
	m = update(t, m, jobUpdateMsg{job: running})
	assert.False(t, m.done)
	assert.Contains(t, m.renderContent(), "processing")

	done := &models.LabJob{ID: "job-1", State: models.JobStateSucceeded, LessonIDs: []string{"a", "b"}}
	m = update(t, m, jobUpdateMsg{job: done})
	assert.True(t, m.done)
	assert.NoError(t, m.err)
	assert.Contains(t, m.renderContent(), "Lessons created: 2")
}

func TestWaitModel_Failed(t *testing.T) {
	m := newWaitModel(nil, queuedJob(), backoff.NewConstantBackOff(time.Millisecond))

	failed := &models.LabJob{ID: "job-1", State: models.JobStateFailed, Error: "Lesson generation failed. Please try again."}
	m = update(t, m, jobUpdateMsg{job: failed})
	assert.True(t, m.done)
	require.Error(t, m.err)
	assert.Equal(t, failed.Error, m.err.Error())
}

func TestWaitModel_FetchError(t *testing.T) {
	m := newWaitModel(nil, queuedJob(), backoff.NewConstantBackOff(time.Millisecond))
	m = update(t, m, jobUpdateMsg{err: errors.New("connection refused")})
	assert.True(t, m.done)
	assert.ErrorContains(t, m.err, "connection refused")
}

func TestWaitModel_Deadline(t *testing.T) {
	m := newWaitModel(nil, queuedJob(), &backoff.StopBackOff{})
	m = update(t, m, jobUpdateMsg{job: queuedJob()})
	assert.True(t, m.timedOut)
	assert.ErrorIs(t, m.err, errWaitTimeout)
	assert.Contains(t, m.renderContent(), "continues in background")
}

func TestWaitModel_FetchJob(t *testing.T) {
	var asked string
	status := func(_ context.Context, id string) (*models.LabJob, error) {
		asked = id
		return &models.LabJob{ID: id, State: models.JobStateSucceeded}, nil
	}
	m := newWaitModel(status, queuedJob(), &backoff.StopBackOff{})

	msg := m.fetchJob()()
	upd, ok := msg.(jobUpdateMsg)
	require.True(t, ok)
	assert.Equal(t, "job-1", asked)
	assert.Equal(t, models.JobStateSucceeded, upd.job.State)
}

func TestRunJobProgress_TerminalJobSkipsUI(t *testing.T) {
	job := &models.LabJob{ID: "job-1", State: models.JobStateFailed, Error: "boom."}
	got, err := RunJobProgress(nil, job, time.Minute)
	assert.Same(t, job, got)
	assert.EqualError(t, err, "boom.")
}

func TestRenderLesson(t *testing.T) {
	l := &models.MicroLesson{
		ID:          "l-1",
		ProjectID:   "whales",
		Name:        "The White Whale",
		Description: "Obsession as a compass.",
		OrderIndex:  2,
		Slides: []models.Slide{
			{Position: 0, Text: "Ahab nails a doubloon to the mast."},
			{Position: 1, Text: "  The crew swears an oath.  "},
		},
		SourceJobID: "job-1",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	out, err := renderLesson(l)
	require.NoError(t, err)
	assert.Equal(t, "003-the-white-whale.md", lessonFilename(l))

	parts := strings.SplitN(out, "---\n", 3)
	require.Len(t, parts, 3)
	var fm lessonFrontmatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "l-1", fm.ID)
	assert.Equal(t, 2, fm.Order)
	assert.Equal(t, "job-1", fm.SourceJob)

	assert.Contains(t, parts[2], "# The White Whale\n\nObsession as a compass.")
	assert.Contains(t, parts[2], "## Slide 2\n\nThe crew swears an oath.\n")
}

func TestLessonFilename_FallsBackToID(t *testing.T) {
	assert.Equal(t, "001-l-9.md", lessonFilename(&models.MicroLesson{ID: "l-9", Name: "¿?"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
