// Package persistence provides the storage abstraction for workflows, execution runs and
// suspended-run continuations.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/engageflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRunRepository() ExecutionRunRepository
	ContinuationRepository() ContinuationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters, sorts and paginates ListWorkflows.
type ListWorkflowsOptions struct {
	Limit  int
	Offset int

	OrganizationID string
	TriggerType    models.TriggerType
	IsActive       *bool

	// SortBy is one of created_at, updated_at, name or last_executed_at.
	SortBy    string
	SortOrder string
}

type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// Save creates or replaces a workflow definition. On update, is_active and
	// the execution counters keep their stored values, which are copied back
	// into workflow.
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) (*models.Workflow, error)
	GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error)

	// RecordExecution atomically increments execution_count and sets
	// last_executed_at, returning the updated workflow.
	RecordExecution(ctx context.Context, id string, at time.Time) (*models.Workflow, error)
}

type ExecutionRunRepository interface {
	Create(ctx context.Context, run *models.ExecutionRun) error
	// Update persists a run. Terminal runs are immutable and steps_executed never
	// moves backwards.
	Update(ctx context.Context, run *models.ExecutionRun) error
	GetByID(ctx context.Context, id string) (*models.ExecutionRun, error)
	// ListByWorkflow returns the most recent runs first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRun, error)
	ListByStatus(ctx context.Context, status models.RunStatus, limit int) ([]*models.ExecutionRun, error)
}

type ContinuationRepository interface {
	Save(ctx context.Context, continuation *models.Continuation) error
	// ClaimDue returns continuations whose resume_at is not after now. Claimed
	// entries have resume_at pushed forward by lease and attempts incremented,
	// so an interrupted resume is retried once the lease expires.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Continuation, error)
	Delete(ctx context.Context, runID string) error
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	DefaultRunLimit  = 50
)

// NormalizeListOptions applies defaults and validates the sort field.
func NormalizeListOptions(opts ListWorkflowsOptions) (ListWorkflowsOptions, error) {
	if opts.Limit <= 0 || opts.Limit > MaxListLimit {
		opts.Limit = DefaultListLimit
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}

	switch opts.SortBy {
	case "created_at", "updated_at", "name", "last_executed_at":
	default:
		return opts, NewInvalidSortFieldError(opts.SortBy)
	}

	return opts, nil
}

// CheckRunTransition enforces that terminal runs stay immutable and progress
// never regresses.
func CheckRunTransition(current, next *models.ExecutionRun) error {
	if current.Status.IsTerminal() {
		return NewRunError("Update", current.ID, ErrRunTerminal)
	}

	if next.StepsExecuted < current.StepsExecuted {
		return NewRunError("Update", current.ID, ErrRunProgressRegression)
	}

	return nil
}

// ContinuationStore is a standalone continuation backend with its own lifecycle.
type ContinuationStore interface {
	ContinuationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type withContinuations struct {
	Persistence

	continuations ContinuationStore
}

// WithContinuationStore returns p with continuations served by store instead.
//
//nolint:ireturn // decorator
func WithContinuationStore(p Persistence, store ContinuationStore) Persistence {
	return &withContinuations{Persistence: p, continuations: store}
}

//nolint:ireturn // persistence.Persistence contract
func (w *withContinuations) ContinuationRepository() ContinuationRepository {
	return w.continuations
}

func (w *withContinuations) HealthCheck(ctx context.Context) error {
	err := w.Persistence.HealthCheck(ctx)
	if err != nil {
		return err
	}

	return w.continuations.HealthCheck(ctx)
}

func (w *withContinuations) Close(ctx context.Context) error {
	return errors.Join(w.continuations.Close(ctx), w.Persistence.Close(ctx))
}
