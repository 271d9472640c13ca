package assign

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/engageflow/pkg/mocks"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute(t *testing.T) {
	rc := models.Context{
		"lead":         map[string]any{"id": "lead-1", "region_owner": "agent-9"},
		"conversation": map[string]any{"id": "conv-3"},
	}

	tests := []struct {
		name       string
		stepType   models.StepType
		config     map[string]any
		wantEntity models.EntityRef
		wantID     string
	}{
		{
			name:       "assign lead defaults to the lead",
			stepType:   models.StepAssignLead,
			config:     map[string]any{"assigneeId": "agent-1"},
			wantEntity: models.EntityRef{Kind: "lead", ID: "lead-1"},
			wantID:     "agent-1",
		},
		{
			name:       "assign agent defaults to the conversation",
			stepType:   models.StepAssignAgent,
			config:     map[string]any{"assigneeId": "agent-2"},
			wantEntity: models.EntityRef{Kind: "conversation", ID: "conv-3"},
			wantID:     "agent-2",
		},
		{
			name:       "templated assignee and explicit entity",
			stepType:   models.StepAssignAgent,
			config:     map[string]any{"assigneeId": "{{ .lead.region_owner }}", "entity": "lead"},
			wantEntity: models.EntityRef{Kind: "lead", ID: "lead-1"},
			wantID:     "agent-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assigner := &mocks.MockAssigner{}
			assigner.On("Assign", mock.Anything, tt.wantEntity, tt.wantID).Return(nil).Once()

			action, err := NewActionFactory(tt.stepType, assigner).Create(context.Background(), tt.config)
			require.NoError(t, err)

			_, err = action.Execute(context.Background(), rc, slog.Default())
			require.NoError(t, err)

			assigner.AssertExpectations(t)
		})
	}
}

func TestAction_Execute_NoEntity(t *testing.T) {
	assigner := &mocks.MockAssigner{}
	action := NewAction(models.StepAssignLead, models.AssignConfig{AssigneeID: "agent-1"}, assigner)

	_, err := action.Execute(context.Background(), models.Context{"customer": map[string]any{"id": "c"}}, slog.Default())
	require.ErrorIs(t, err, protocol.ErrNoTargetEntity)
}

func TestActionFactory_Create_MissingAssignee(t *testing.T) {
	_, err := NewActionFactory(models.StepAssignAgent, nil).Create(context.Background(), map[string]any{})
	require.ErrorIs(t, err, models.ErrInvalidStepConfig)
}
