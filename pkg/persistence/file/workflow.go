package file

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations. Writes are
// serialized so read-modify-write updates such as RecordExecution are atomic
// within the process.
type WorkflowRepository struct {
	mu    sync.Mutex
	store *jsonStore
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{store: newJSONStore(root, "workflows")}
}

func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.loadAll()
}

func (wr *WorkflowRepository) loadAll() ([]*models.Workflow, error) {
	ids, err := wr.store.ids()
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow

		err := wr.store.read(id, &workflow)
		if errors.Is(err, errNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, &workflow)
	}

	sortWorkflows(workflows, "created_at", "desc")

	return workflows, nil
}

// ListWorkflows returns paginated and filtered workflows with in-memory operations.
func (wr *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if opts.OrganizationID != "" && workflow.OrganizationID != opts.OrganizationID {
			continue
		}

		if opts.TriggerType != "" && workflow.TriggerType != opts.TriggerType {
			continue
		}

		if opts.IsActive != nil && workflow.IsActive != *opts.IsActive {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	if opts.Offset >= len(filtered) {
		return &persistence.WorkflowListResult{Workflows: []*models.Workflow{}, TotalCount: totalCount}, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &persistence.WorkflowListResult{
		Workflows:   filtered[opts.Offset:end],
		TotalCount:  totalCount,
		HasNextPage: end < len(filtered),
	}, nil
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.SliceStable(workflows, func(i, j int) bool {
		left, right := workflows[i], workflows[j]
		if sortOrder == "desc" {
			left, right = right, left
		}

		switch sortBy {
		case "updated_at":
			return left.UpdatedAt.Before(right.UpdatedAt)
		case "name":
			return left.Name < right.Name
		case "last_executed_at":
			return executedBefore(left.LastExecutedAt, right.LastExecutedAt)
		default:
			return left.CreatedAt.Before(right.CreatedAt)
		}
	})
}

func executedBefore(left, right *time.Time) bool {
	switch {
	case left == nil:
		return right != nil
	case right == nil:
		return false
	default:
		return left.Before(*right)
	}
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.get("GetByID", id)
}

func (wr *WorkflowRepository) get(op, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := wr.store.read(id, &workflow)
	if errors.Is(err, errNotExist) {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError(op, id, err)
	}

	return &workflow, nil
}

// Save writes the full workflow document, replacing any previous version.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	// Activation is owned by SetActive and execution counters by
	// RecordExecution once the workflow exists.
	var existing models.Workflow

	err := wr.store.read(workflow.ID, &existing)

	switch {
	case err == nil:
		workflow.IsActive = existing.IsActive
		workflow.ExecutionCount = existing.ExecutionCount
		workflow.LastExecutedAt = existing.LastExecutedAt
	case !errors.Is(err, errNotExist):
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	err = wr.store.write(workflow.ID, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := wr.store.remove(id)
	if errors.Is(err, errNotExist) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func (wr *WorkflowRepository) SetActive(_ context.Context, id string, active bool) (*models.Workflow, error) {
	return wr.update("SetActive", id, func(workflow *models.Workflow) {
		workflow.IsActive = active
		workflow.UpdatedAt = time.Now().UTC()
	})
}

func (wr *WorkflowRepository) GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.IsActive && workflow.TriggerType == triggerType {
			matches = append(matches, workflow)
		}
	}

	sortWorkflows(matches, "created_at", "asc")

	return matches, nil
}

func (wr *WorkflowRepository) RecordExecution(_ context.Context, id string, at time.Time) (*models.Workflow, error) {
	return wr.update("RecordExecution", id, func(workflow *models.Workflow) {
		executedAt := at.UTC()
		workflow.ExecutionCount++
		workflow.LastExecutedAt = &executedAt
	})
}

func (wr *WorkflowRepository) update(op, id string, mutate func(*models.Workflow)) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.get(op, id)
	if err != nil {
		return nil, err
	}

	mutate(workflow)

	err = wr.store.write(id, workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError(op, id, err)
	}

	return workflow, nil
}
