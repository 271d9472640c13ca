package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		runErr := persistence.NewRunError("Update", "run-1", persistence.ErrRunTerminal)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsRunTerminal(runErr))
		assert.False(t, persistence.IsRunNotFound(runErr))
		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("SetActive", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "SetActive")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})

	t.Run("invalid sort field", func(t *testing.T) {
		err := persistence.NewInvalidSortFieldError("name; DROP TABLE workflows; --")

		assert.True(t, persistence.IsInvalidSortField(err))
		assert.Contains(t, err.Error(), "DROP TABLE")
	})
}

func TestNormalizeListOptions(t *testing.T) {
	t.Parallel()

	opts, err := persistence.NormalizeListOptions(persistence.ListWorkflowsOptions{Limit: 1000, Offset: -3, SortOrder: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, persistence.DefaultListLimit, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	assert.Equal(t, "created_at", opts.SortBy)
	assert.Equal(t, "desc", opts.SortOrder)

	_, err = persistence.NormalizeListOptions(persistence.ListWorkflowsOptions{SortBy: "steps"})
	require.ErrorIs(t, err, persistence.ErrInvalidSortField)
}

func TestCheckRunTransition(t *testing.T) {
	t.Parallel()

	running := &models.ExecutionRun{ID: "run-1", Status: models.RunStatusRunning, StepsExecuted: 2}

	require.NoError(t, persistence.CheckRunTransition(running, &models.ExecutionRun{StepsExecuted: 3}))
	require.ErrorIs(t, persistence.CheckRunTransition(running, &models.ExecutionRun{StepsExecuted: 1}), persistence.ErrRunProgressRegression)

	done := &models.ExecutionRun{ID: "run-2", Status: models.RunStatusCompleted}
	require.ErrorIs(t, persistence.CheckRunTransition(done, &models.ExecutionRun{}), persistence.ErrRunTerminal)
}
