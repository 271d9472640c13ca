package file

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
)

type ExecutionRunRepository struct {
	mu    sync.Mutex
	store *jsonStore
}

func NewExecutionRunRepository(root string) *ExecutionRunRepository {
	return &ExecutionRunRepository{store: newJSONStore(root, "execution_runs")}
}

func (r *ExecutionRunRepository) Create(_ context.Context, run *models.ExecutionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.write(run.ID, run)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	return nil
}

func (r *ExecutionRunRepository) Update(_ context.Context, run *models.ExecutionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.get("Update", run.ID)
	if err != nil {
		return err
	}

	err = persistence.CheckRunTransition(current, run)
	if err != nil {
		return err
	}

	err = r.store.write(run.ID, run)
	if err != nil {
		return persistence.NewRunError("Update", run.ID, err)
	}

	return nil
}

func (r *ExecutionRunRepository) GetByID(_ context.Context, id string) (*models.ExecutionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.get("GetByID", id)
}

func (r *ExecutionRunRepository) get(op, id string) (*models.ExecutionRun, error) {
	var run models.ExecutionRun

	err := r.store.read(id, &run)
	if errors.Is(err, errNotExist) {
		return nil, persistence.NewRunError(op, id, persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewRunError(op, id, err)
	}

	return &run, nil
}

func (r *ExecutionRunRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ExecutionRun, error) {
	return r.list(limit, func(run *models.ExecutionRun) bool {
		return run.WorkflowID == workflowID
	})
}

func (r *ExecutionRunRepository) ListByStatus(_ context.Context, status models.RunStatus, limit int) ([]*models.ExecutionRun, error) {
	return r.list(limit, func(run *models.ExecutionRun) bool {
		return run.Status == status
	})
}

func (r *ExecutionRunRepository) list(limit int, keep func(*models.ExecutionRun) bool) ([]*models.ExecutionRun, error) {
	if limit <= 0 {
		limit = persistence.DefaultRunLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	runs := make([]*models.ExecutionRun, 0)

	for _, id := range ids {
		var run models.ExecutionRun

		err := r.store.read(id, &run)
		if errors.Is(err, errNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", id, err)
		}

		if keep(&run) {
			runs = append(runs, &run)
		}
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}
