package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/engageflow/pkg/actions/notify"
	"github.com/dukex/engageflow/pkg/actions/status"
	"github.com/dukex/engageflow/pkg/actions/tag"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/dukex/engageflow/pkg/persistence/file"
	"github.com/dukex/engageflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Workflow, *file.Persistence) {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(notify.NewActionFactory(models.StepSendNotification, nil))
	reg.RegisterAction(status.NewActionFactory(nil))
	reg.RegisterAction(tag.NewActionFactory(nil))

	p := file.NewPersistence(t.TempDir())

	return NewWorkflow(p, reg), p
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:        "Welcome new leads",
		Description: "Tags and notifies on every new lead",
		TriggerType: models.TriggerLeadCreated,
		Steps: []*models.Step{
			{ID: "s1", Type: models.StepAddTag, Config: map[string]any{"tag": "new"}},
			{ID: "s2", Type: models.StepCondition, Config: map[string]any{"field": "lead.status", "operator": "eq", "value": "qualified"}},
			{ID: "s3", Type: models.StepSendNotification, Config: map[string]any{"content": "New lead {{ .lead.name }}"}},
		},
	}
}

func TestWorkflow_Create(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.IsActive)
	assert.Zero(t, created.ExecutionCount)
	assert.Len(t, created.Steps, 3)

	fetched, err := service.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)
	assert.Equal(t, "s2", fetched.Steps[1].ID)
}

func TestWorkflow_Create_AssignsMissingStepIDs(t *testing.T) {
	service, _ := newTestService(t)

	workflow := validWorkflow()
	workflow.Steps[0].ID = ""

	created, err := service.Create(context.Background(), workflow)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Steps[0].ID)
	assert.Empty(t, workflow.Steps[0].ID)
}

func TestWorkflow_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Workflow)
		wantErr error
	}{
		{
			name:    "empty name",
			mutate:  func(w *models.Workflow) { w.Name = "   " },
			wantErr: ErrWorkflowNameRequired,
		},
		{
			name:    "unknown trigger type",
			mutate:  func(w *models.Workflow) { w.TriggerType = "invoice_paid" },
			wantErr: ErrInvalidTriggerType,
		},
		{
			name:    "missing trigger type",
			mutate:  func(w *models.Workflow) { w.TriggerType = "" },
			wantErr: ErrInvalidTriggerType,
		},
		{
			name:    "unknown step type",
			mutate:  func(w *models.Workflow) { w.Steps[1].Type = "send_fax" },
			wantErr: ErrInvalidStepType,
		},
		{
			name:    "duplicate step ids",
			mutate:  func(w *models.Workflow) { w.Steps[2].ID = "s1" },
			wantErr: ErrDuplicateStepID,
		},
		{
			name:    "config violates schema",
			mutate:  func(w *models.Workflow) { w.Steps[0].Config = map[string]any{"tag": ""} },
			wantErr: ErrInvalidStepConfig,
		},
		{
			name:    "negative wait",
			mutate:  func(w *models.Workflow) { w.Steps[1] = &models.Step{ID: "s2", Type: models.StepWait, Config: map[string]any{"minutes": -5}} },
			wantErr: ErrInvalidStepConfig,
		},
		{
			name: "wait beyond a year",
			mutate: func(w *models.Workflow) {
				w.Steps[1] = &models.Step{ID: "s2", Type: models.StepWait, Config: map[string]any{"minutes": float64(9e15)}}
			},
			wantErr: ErrInvalidStepConfig,
		},
		{
			name:    "fractional wait",
			mutate:  func(w *models.Workflow) { w.Steps[1] = &models.Step{ID: "s2", Type: models.StepWait, Config: map[string]any{"minutes": 1.5}} },
			wantErr: ErrInvalidStepConfig,
		},
		{
			name: "unsupported expression",
			mutate: func(w *models.Workflow) {
				w.Steps[1].Config = map[string]any{"expression": "len(lead.tags) > 2"}
			},
			wantErr: ErrInvalidCondition,
		},
		{
			name: "unknown condition operator",
			mutate: func(w *models.Workflow) {
				w.Steps[1].Config = map[string]any{"field": "lead.score", "operator": "between", "value": 1}
			},
			wantErr: ErrInvalidStepConfig,
		},
		{
			name:    "nil step",
			mutate:  func(w *models.Workflow) { w.Steps[1] = nil },
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, p := newTestService(t)
			ctx := context.Background()

			workflow := validWorkflow()
			tt.mutate(workflow)

			_, err := service.Create(ctx, workflow)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))

			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			assert.Equal(t, "Create", serviceErr.Op)

			all, err := p.WorkflowRepository().GetAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestWorkflow_Create_Nil(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Create(context.Background(), nil)
	require.ErrorIs(t, err, ErrWorkflowNil)
}

func TestWorkflow_SaveDefinition(t *testing.T) {
	service, p := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	_, err = service.SetActive(ctx, created.ID, true)
	require.NoError(t, err)

	_, err = p.WorkflowRepository().RecordExecution(ctx, created.ID, time.Now().UTC())
	require.NoError(t, err)

	updated, err := service.SaveDefinition(ctx, created.ID, Definition{
		Name:        "Follow up",
		TriggerType: models.TriggerMessageUnreplied,
		Steps: []*models.Step{
			{ID: "a", Type: models.StepUpdateStatus, Config: map[string]any{"target": "follow_up"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Follow up", updated.Name)
	assert.Equal(t, models.TriggerMessageUnreplied, updated.TriggerType)

	fetched, err := service.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsActive)
	assert.EqualValues(t, 1, fetched.ExecutionCount)
	require.Len(t, fetched.Steps, 1)
	assert.Equal(t, "a", fetched.Steps[0].ID)
}

func TestWorkflow_SaveDefinition_InvalidKeepsPrevious(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	_, err = service.SaveDefinition(ctx, created.ID, Definition{Name: "", TriggerType: models.TriggerLeadCreated})
	require.ErrorIs(t, err, ErrWorkflowNameRequired)

	fetched, err := service.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome new leads", fetched.Name)
	assert.Len(t, fetched.Steps, 3)
}

func TestWorkflow_SaveDefinition_NotFound(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.SaveDefinition(context.Background(), "missing", Definition{Name: "x", TriggerType: models.TriggerManual})
	require.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflow_SetActive(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	activated, err := service.SetActive(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Equal(t, created.Name, activated.Name)
	assert.Len(t, activated.Steps, 3)

	deactivated, err := service.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	_, err = service.SetActive(ctx, "missing", true)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_MoveStep(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	moved, err := service.MoveStep(ctx, created.ID, "s2", models.MoveUp)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1", "s3"}, stepIDs(moved))

	restored, err := service.MoveStep(ctx, created.ID, "s2", models.MoveDown)
	require.NoError(t, err)
	assert.Equal(t, stepIDs(created), stepIDs(restored))

	fetched, err := service.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, stepIDs(created), stepIDs(fetched))
}

func TestWorkflow_MoveStep_Errors(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	_, err = service.MoveStep(ctx, created.ID, "s1", models.MoveUp)
	require.ErrorIs(t, err, ErrStepMoveOutOfRange)
	assert.True(t, IsConflictError(err))

	_, err = service.MoveStep(ctx, created.ID, "s3", models.MoveDown)
	require.ErrorIs(t, err, ErrStepMoveOutOfRange)

	_, err = service.MoveStep(ctx, created.ID, "nope", models.MoveDown)
	require.ErrorIs(t, err, ErrStepNotFound)
	assert.True(t, IsNotFoundError(err))

	_, err = service.MoveStep(ctx, created.ID, "s1", "sideways")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = service.MoveStep(ctx, "missing", "s1", models.MoveDown)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_Delete(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, created.ID))

	_, err = service.FetchByID(ctx, created.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	err = service.Delete(ctx, created.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_ListWorkflows(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		workflow := validWorkflow()
		workflow.Name = name

		_, err := service.Create(ctx, workflow)
		require.NoError(t, err)
	}

	result, err := service.ListWorkflows(ctx, ListWorkflowsRequest{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.TotalCount)
	assert.True(t, result.HasNextPage)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "Alpha", result.Workflows[0].Name)
	assert.Equal(t, "Bravo", result.Workflows[1].Name)

	_, err = service.ListWorkflows(ctx, ListWorkflowsRequest{SortBy: "owner"})
	require.ErrorIs(t, err, ErrInvalidSortField)

	_, err = service.ListWorkflows(ctx, ListWorkflowsRequest{SortOrder: "sideways"})
	require.ErrorIs(t, err, ErrInvalidSortOrder)

	_, err = service.ListWorkflows(ctx, ListWorkflowsRequest{TriggerType: "invoice_paid"})
	require.ErrorIs(t, err, ErrInvalidTriggerType)
}

func TestWorkflow_RunHistoryAndGetRun(t *testing.T) {
	service, p := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	run := &models.ExecutionRun{
		ID:           "run-1",
		WorkflowID:   created.ID,
		TriggerEvent: "lead_created",
		StartedAt:    time.Now().UTC(),
		Status:       models.RunStatusRunning,
		StepsTotal:   3,
	}
	require.NoError(t, p.ExecutionRunRepository().Create(ctx, run))

	history, err := service.RunHistory(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "run-1", history[0].ID)

	fetched, err := service.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, fetched.StepsTotal)

	_, err = service.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = service.RunHistory(ctx, "missing", 10)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	service, _ := newTestService(t)

	message, ok := service.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func stepIDs(workflow *models.Workflow) []string {
	ids := make([]string, 0, len(workflow.Steps))
	for _, step := range workflow.Steps {
		ids = append(ids, step.ID)
	}

	return ids
}

// deactivatingPersistence flips a workflow inactive right after the service
// reads it, simulating a concurrent SetActive.
type deactivatingPersistence struct {
	*file.Persistence
}

func (p deactivatingPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return deactivatingRepository{WorkflowRepository: p.Persistence.WorkflowRepository()}
}

type deactivatingRepository struct {
	persistence.WorkflowRepository
}

func (r deactivatingRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := r.WorkflowRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := r.WorkflowRepository.SetActive(ctx, id, false); err != nil {
		return nil, err
	}

	return workflow, nil
}

func TestWorkflow_EditsDoNotRevertConcurrentDeactivation(t *testing.T) {
	service, p := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	racing := NewWorkflow(deactivatingPersistence{Persistence: p}, service.registry)

	t.Run("SaveDefinition", func(t *testing.T) {
		_, err := service.SetActive(ctx, created.ID, true)
		require.NoError(t, err)

		updated, err := racing.SaveDefinition(ctx, created.ID, Definition{
			Name:        "Renamed",
			TriggerType: models.TriggerLeadCreated,
			Steps:       created.Steps,
		})
		require.NoError(t, err)
		assert.False(t, updated.IsActive)

		fetched, err := service.FetchByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", fetched.Name)
		assert.False(t, fetched.IsActive)
	})

	t.Run("MoveStep", func(t *testing.T) {
		_, err := service.SetActive(ctx, created.ID, true)
		require.NoError(t, err)

		moved, err := racing.MoveStep(ctx, created.ID, "s2", models.MoveUp)
		require.NoError(t, err)
		assert.False(t, moved.IsActive)

		fetched, err := service.FetchByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"s2", "s1", "s3"}, stepIDs(fetched))
		assert.False(t, fetched.IsActive)
	})
}

func TestWorkflow_SaveDefinition_RejectsNilStep(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	_, err = service.SaveDefinition(ctx, created.ID, Definition{
		Name:        "With a hole",
		TriggerType: models.TriggerLeadCreated,
		Steps:       []*models.Step{created.Steps[0], nil},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	fetched, err := service.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, fetched.Steps, 3)
}
