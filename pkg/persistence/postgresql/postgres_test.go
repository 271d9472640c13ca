package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/dukex/engageflow/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"continuations", "execution_runs", "workflow_steps", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("engageflow_test"),
			postgres.WithUsername("engageflow"),
			postgres.WithPassword("engageflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func newWorkflow(trigger models.TriggerType, active bool) *models.Workflow {
	return &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Welcome new leads",
		TriggerType:    trigger,
		IsActive:       active,
		Steps: []*models.Step{
			{ID: "notify", Type: models.StepSendNotification, Label: "Notify", Config: map[string]any{"title": "New lead"}},
			{ID: "wait", Type: models.StepWait, Config: map[string]any{"minutes": float64(30)}},
			{ID: "tag", Type: models.StepAddTag, Config: map[string]any{"tag": "welcomed"}},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestWorkflowRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := newWorkflow(models.TriggerLeadCreated, true)
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	require.Len(t, loaded.Steps, 3)
	assert.Equal(t, "notify", loaded.Steps[0].ID)
	assert.Equal(t, "tag", loaded.Steps[2].ID)
	assert.InDelta(t, 30, loaded.Steps[1].Config["minutes"], 0)

	// Full replace keeps the new order.
	workflow.Steps[0], workflow.Steps[2] = workflow.Steps[2], workflow.Steps[0]
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err = repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "tag", loaded.Steps[0].ID)

	_, err = repo.GetByID(ctx, uuid.New().String())
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	require.NoError(t, repo.Delete(ctx, workflow.ID))
	require.ErrorIs(t, repo.Delete(ctx, workflow.ID), persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_ListAndActive(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	first := newWorkflow(models.TriggerLeadCreated, true)
	second := newWorkflow(models.TriggerLeadCreated, false)
	third := newWorkflow(models.TriggerScheduled, true)

	for _, workflow := range []*models.Workflow{first, second, third} {
		require.NoError(t, repo.Save(ctx, workflow))
	}

	matches, err := repo.GetActiveByTriggerType(ctx, models.TriggerLeadCreated)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, first.ID, matches[0].ID)
	assert.Len(t, matches[0].Steps, 3)

	updated, err := repo.SetActive(ctx, second.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	matches, err = repo.GetActiveByTriggerType(ctx, models.TriggerLeadCreated)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	isActive := true

	result, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{IsActive: &isActive, Limit: 2, SortBy: "name"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.TotalCount)
	assert.Len(t, result.Workflows, 2)
	assert.True(t, result.HasNextPage)

	_, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows; --"})
	require.ErrorIs(t, err, persistence.ErrInvalidSortField)

	_, err = repo.SetActive(ctx, uuid.New().String(), true)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_SaveKeepsActivation(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := newWorkflow(models.TriggerLeadCreated, true)
	require.NoError(t, repo.Save(ctx, workflow))

	stale := *workflow

	_, err := repo.SetActive(ctx, workflow.ID, false)
	require.NoError(t, err)

	stale.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, &stale))
	assert.False(t, stale.IsActive)

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.False(t, loaded.IsActive)
}

func TestWorkflowRepository_RecordExecution(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := newWorkflow(models.TriggerManual, true)
	require.NoError(t, repo.Save(ctx, workflow))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.RecordExecution(ctx, workflow.ID, at)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	// A later definition save must not reset the counters.
	workflow.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, loaded.ExecutionCount)
	require.NotNil(t, loaded.LastExecutedAt)
	assert.True(t, at.Equal(*loaded.LastExecutedAt))
}

func TestExecutionRunRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ExecutionRunRepository()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &models.ExecutionRun{
		ID:           uuid.New().String(),
		WorkflowID:   "wf-1",
		TriggerEvent: "lead_created",
		StartedAt:    start,
		Status:       models.RunStatusRunning,
		StepsTotal:   2,
	}
	require.NoError(t, repo.Create(ctx, run))

	run.StepsExecuted = 1
	run.StepResults = []models.StepResult{{StepID: "a", Type: models.StepAddTag, Status: models.StepStatusSucceeded, At: start}}
	require.NoError(t, repo.Update(ctx, run))

	run.StepsExecuted = 0
	require.ErrorIs(t, repo.Update(ctx, run), persistence.ErrRunProgressRegression)

	finished := start.Add(2 * time.Second)
	duration := int64(2000)
	run.StepsExecuted = 2
	run.Status = models.RunStatusCompleted
	run.FinishedAt = &finished
	run.DurationMs = &duration
	require.NoError(t, repo.Update(ctx, run))

	run.Status = models.RunStatusFailed
	require.ErrorIs(t, repo.Update(ctx, run), persistence.ErrRunTerminal)

	loaded, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.StepsExecuted)
	require.NotNil(t, loaded.DurationMs)
	assert.EqualValues(t, 2000, *loaded.DurationMs)
	require.Len(t, loaded.StepResults, 1)

	runs, err := repo.ListByWorkflow(ctx, "wf-1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	running, err := repo.ListByStatus(ctx, models.RunStatusRunning, 10)
	require.NoError(t, err)
	assert.Empty(t, running)

	_, err = repo.GetByID(ctx, uuid.New().String())
	require.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestContinuationRepository_ClaimDue(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ContinuationRepository()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &models.Continuation{
		RunID:         "run-due",
		WorkflowID:    "wf-1",
		NextStepIndex: 2,
		ResumeAt:      now.Add(-time.Second),
		Steps:         []*models.Step{{ID: "wait", Type: models.StepWait}, {ID: "tag", Type: models.StepAddTag}},
		Context:       models.Context{"lead": map[string]any{"id": "lead-1"}},
		CreatedAt:     now.Add(-30 * time.Minute),
	}))
	require.NoError(t, repo.Save(ctx, &models.Continuation{
		RunID:      "run-later",
		WorkflowID: "wf-1",
		ResumeAt:   now.Add(time.Hour),
		Steps:      []*models.Step{},
		Context:    models.Context{},
		CreatedAt:  now,
	}))

	claimed, err := repo.ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "run-due", claimed[0].RunID)
	assert.Equal(t, 2, claimed[0].NextStepIndex)
	assert.Equal(t, 1, claimed[0].Attempts)
	assert.Equal(t, "lead-1", claimed[0].Context.String("lead.id"))
	require.Len(t, claimed[0].Steps, 2)

	claimed, err = repo.ClaimDue(ctx, now.Add(30*time.Second), time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	require.NoError(t, repo.Delete(ctx, "run-due"))

	claimed, err = repo.ClaimDue(ctx, now.Add(5*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
