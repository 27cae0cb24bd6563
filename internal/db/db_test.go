// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/litlab/internal/chunkstore"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Println("skipping SurrealDB integration tests in short mode")
		os.Exit(0)
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, metrics.NewCollector())
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close()
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func resetDB(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.WipeData(context.Background()))
}

func queuedJob(project string, q models.RetrievalQuery) *models.LabJob {
	return &models.LabJob{
		ID:         uuid.NewString(),
		ProjectID:  project,
		DocumentID: "doc-1",
		Query:      q,
		State:      models.JobStateQueued,
		CreatedAt:  time.Now(),
	}
}

// =============================================================================
// CONNECTION
// =============================================================================

func TestClientQuery(t *testing.T) {
	ctx := context.Background()
	result, err := testDB.Query(ctx, "INFO FOR DB", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

// =============================================================================
// JOB TESTS
// =============================================================================

func TestJobLifecycle(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	job := queuedJob("p1", models.DirectedQuery{QueryText: "whales", TopK: 3})
	require.NoError(t, testDB.CreateJob(ctx, job))

	got, err := testDB.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateQueued, got.State)
	assert.Equal(t, models.DirectedQuery{QueryText: "whales", TopK: 3}, got.Query)

	claimed, err := testDB.ClaimJob(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = testDB.ClaimJob(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must not succeed")

	lesson := models.LessonDraft{Name: "Obsession", Slides: []string{"one", "two"}}.
		ToLesson(uuid.NewString(), "p1", job.ID, 0, time.Now())
	done, err := testDB.CompleteJob(ctx, job.ID, []models.MicroLesson{lesson}, time.Now())
	require.NoError(t, err)
	assert.True(t, done)

	got, err = testDB.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateSucceeded, got.State)
	assert.Equal(t, []string{lesson.ID}, got.LessonIDs)
	assert.Equal(t, 1, got.Attempts)

	stored, err := testDB.GetLesson(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", stored.ConsolidatedText())

	// terminal states are immutable
	done, err = testDB.CompleteJob(ctx, job.ID, []models.MicroLesson{lesson}, time.Now())
	require.NoError(t, err)
	assert.False(t, done)
	failed, err := testDB.FailJob(ctx, job.ID, "x", "x", time.Now())
	require.NoError(t, err)
	assert.False(t, failed)

	maxIndex, err := testDB.MaxOrderIndex(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, maxIndex)
}

func TestCreateJob_SingleFlight(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	first := queuedJob("p1", models.EmotionRankedQuery{SampleSize: 10, TopK: 2})
	require.NoError(t, testDB.CreateJob(ctx, first))

	err := testDB.CreateJob(ctx, queuedJob("p1", models.DirectedQuery{QueryText: "q"}))
	assert.ErrorIs(t, err, models.ErrAlreadyRunning)

	failed, err := testDB.FailJob(ctx, first.ID, "msg", "detail", time.Now())
	require.NoError(t, err)
	assert.True(t, failed)

	require.NoError(t, testDB.CreateJob(ctx, queuedJob("p1", models.DirectedQuery{QueryText: "q"})))
}

func TestListStale(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	old := queuedJob("p1", models.DirectedQuery{QueryText: "q"})
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, testDB.CreateJob(ctx, old))
	require.NoError(t, testDB.CreateJob(ctx, queuedJob("p2", models.DirectedQuery{QueryText: "q"})))

	cutoff := time.Now().Add(-15 * time.Minute)
	stale, err := testDB.ListStale(ctx, cutoff, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestGetJob_NotFound(t *testing.T) {
	_, err := testDB.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// =============================================================================
// CHUNK / DOCUMENT TESTS
// =============================================================================

func TestChunksBackChunkStore(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	require.NoError(t, testDB.CreateDocument(ctx, &models.Document{ID: "doc-1", ProjectID: "p1", Title: "Moby Dick", ChunkCount: 3}))

	store := chunkstore.New(testDB, nil)
	_, err := store.Insert(ctx, "doc-1", []models.ChunkInput{
		{Text: "a", Embedding: []float32{1, 0, 0}},
		{Text: "b", Embedding: []float32{0, 1, 0}},
		{Text: "c", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	fresh := chunkstore.New(testDB, nil)
	results, err := fresh.SimilaritySearch(ctx, "doc-1", []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].Chunk.Text)

	doc, err := testDB.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", doc.Title)

	require.NoError(t, fresh.DeleteDocument(ctx, "doc-1"))
	_, err = testDB.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
