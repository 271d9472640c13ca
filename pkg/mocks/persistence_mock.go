package mocks

import (
	"context"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.WorkflowListResult), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockWorkflowRepository) SetActive(ctx context.Context, id string, active bool) (*models.Workflow, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	args := m.Called(ctx, triggerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) RecordExecution(ctx context.Context, id string, at time.Time) (*models.Workflow, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

// MockExecutionRunRepository is a mock implementation of persistence.ExecutionRunRepository interface.
type MockExecutionRunRepository struct {
	mock.Mock
}

func (m *MockExecutionRunRepository) Create(ctx context.Context, run *models.ExecutionRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockExecutionRunRepository) Update(ctx context.Context, run *models.ExecutionRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockExecutionRunRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionRun), args.Error(1)
}

func (m *MockExecutionRunRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRun, error) {
	args := m.Called(ctx, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionRun), args.Error(1)
}

func (m *MockExecutionRunRepository) ListByStatus(ctx context.Context, status models.RunStatus, limit int) ([]*models.ExecutionRun, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionRun), args.Error(1)
}

// MockContinuationRepository is a mock implementation of persistence.ContinuationRepository interface.
type MockContinuationRepository struct {
	mock.Mock
}

func (m *MockContinuationRepository) Save(ctx context.Context, continuation *models.Continuation) error {
	args := m.Called(ctx, continuation)

	return args.Error(0)
}

func (m *MockContinuationRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Continuation, error) {
	args := m.Called(ctx, now, lease, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Continuation), args.Error(1)
}

func (m *MockContinuationRepository) Delete(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows     *MockWorkflowRepository
	Runs          *MockExecutionRunRepository
	Continuations *MockContinuationRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows:     &MockWorkflowRepository{},
		Runs:          &MockExecutionRunRepository{},
		Continuations: &MockContinuationRepository{},
	}
}

//nolint:ireturn // persistence.Persistence contract
func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

//nolint:ireturn // persistence.Persistence contract
func (m *MockPersistence) ExecutionRunRepository() persistence.ExecutionRunRepository {
	return m.Runs
}

//nolint:ireturn // persistence.Persistence contract
func (m *MockPersistence) ContinuationRepository() persistence.ContinuationRepository {
	return m.Continuations
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
