// Package assign implements the assign_agent and assign_lead steps.
package assign

import (
	"context"
	"fmt"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

type ActionFactory struct {
	stepType models.StepType
	assigner protocol.Assigner
}

func NewActionFactory(stepType models.StepType, assigner protocol.Assigner) *ActionFactory {
	return &ActionFactory{stepType: stepType, assigner: assigner}
}

func (f *ActionFactory) ID() models.StepType {
	return f.stepType
}

func (f *ActionFactory) Name() string {
	if f.stepType == models.StepAssignLead {
		return "Assign lead"
	}

	return "Assign agent"
}

func (f *ActionFactory) Description() string {
	return "Sets the owner of the target record to the configured assignee."
}

//nolint:ireturn // protocol.ActionFactory contract
func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	decoded, err := models.DecodeStepConfig(f.stepType, config)
	if err != nil {
		return nil, err
	}

	cfg, ok := decoded.(models.AssignConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	return NewAction(f.stepType, cfg, f.assigner), nil
}

func (f *ActionFactory) GetSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:        "object",
		Title:       f.Name(),
		Description: f.Description(),
		Properties: map[string]*models.Property{
			"assigneeId": models.NonEmpty("User or agent id to assign. Supports templating"),
			"entity": {
				Type:        "string",
				Description: "Record kind to assign; defaults to lead for assign_lead and to the conversation for assign_agent",
				Enum:        []any{"lead", "customer", "conversation", "ticket", "deal"},
			},
		},
		Required: []string{"assigneeId"},
	}
}
