// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/engageflow/pkg/models"

// StepRequest is one step of a workflow definition.
type StepRequest struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"             validate:"required"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	TriggerType    string        `json:"trigger_type"`
	IsActive       bool          `json:"is_active"`
	OrganizationID string        `json:"organization_id,omitempty"`
	CreatedBy      string        `json:"created_by,omitempty"`
	Steps          []StepRequest `json:"steps"                     validate:"dive"`
}

// UpdateWorkflowRequest replaces the definition of an existing workflow.
type UpdateWorkflowRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	TriggerType string        `json:"trigger_type"`
	Steps       []StepRequest `json:"steps"        validate:"dive"`
}

// SetActiveRequest toggles a workflow on or off.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// MoveStepRequest moves a step one position up or down.
type MoveStepRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// ExecuteWorkflowRequest runs a workflow immediately with the given payload.
type ExecuteWorkflowRequest struct {
	Payload map[string]any `json:"payload"`
}

// PublishEventRequest submits a CRM domain event.
type PublishEventRequest struct {
	Type    string         `json:"type"    validate:"required"`
	Payload map[string]any `json:"payload"`
}

// AcceptedResponse acknowledges a request processed asynchronously.
type AcceptedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RunListResponse lists the runs of a workflow, newest first.
type RunListResponse struct {
	Runs []*models.ExecutionRun `json:"runs"`
}

func toSteps(requests []StepRequest) []*models.Step {
	steps := make([]*models.Step, 0, len(requests))

	for _, request := range requests {
		steps = append(steps, &models.Step{
			ID:     request.ID,
			Type:   models.StepType(request.Type),
			Label:  request.Label,
			Config: request.Config,
		})
	}

	return steps
}
