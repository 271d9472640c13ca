package status

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/engageflow/pkg/mocks"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute(t *testing.T) {
	updater := &mocks.MockEntityUpdater{}
	updater.On("SetStatus", mock.Anything, models.EntityRef{Kind: "lead", ID: "lead-1"}, "qualified").Return(nil).Once()

	action, err := NewActionFactory(updater).Create(context.Background(), map[string]any{"target": "qualified"})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), models.Context{"lead": map[string]any{"id": "lead-1"}}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "qualified", result.Output["status"])

	updater.AssertExpectations(t)
}

func TestAction_Execute_Errors(t *testing.T) {
	updater := &mocks.MockEntityUpdater{}
	updater.On("SetStatus", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("invalid status"))

	action := NewAction(models.StatusConfig{Target: "bogus"}, updater)

	_, err := action.Execute(context.Background(), models.Context{"deal": map[string]any{"id": "d-1"}}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")

	_, err = action.Execute(context.Background(), models.Context{}, slog.Default())
	require.ErrorIs(t, err, protocol.ErrNoTargetEntity)
}

func TestActionFactory_Create_MissingTarget(t *testing.T) {
	_, err := NewActionFactory(nil).Create(context.Background(), map[string]any{"entity": "lead"})
	require.ErrorIs(t, err, models.ErrInvalidStepConfig)
}
