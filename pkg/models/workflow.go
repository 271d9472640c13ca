// Package models defines the core domain models for workflow automation.
package models

import (
	"errors"
	"slices"
	"time"
)

// TriggerType is the domain event category that starts a workflow.
type TriggerType string

const (
	TriggerLeadCreated         TriggerType = "lead_created"
	TriggerLeadScoreChange     TriggerType = "lead_score_change"
	TriggerCustomerStageChange TriggerType = "customer_stage_change"
	TriggerMessageReceived     TriggerType = "message_received"
	TriggerMessageUnreplied    TriggerType = "message_unreplied"
	TriggerScheduled           TriggerType = "scheduled"
	TriggerManual              TriggerType = "manual"
	TriggerNewConversation     TriggerType = "new_conversation"
	TriggerLeadStatusChange    TriggerType = "lead_status_change"
)

var triggerTypes = []TriggerType{
	TriggerLeadCreated,
	TriggerLeadScoreChange,
	TriggerCustomerStageChange,
	TriggerMessageReceived,
	TriggerMessageUnreplied,
	TriggerScheduled,
	TriggerManual,
	TriggerNewConversation,
	TriggerLeadStatusChange,
}

// TriggerTypes returns every registered trigger type.
func TriggerTypes() []TriggerType {
	return slices.Clone(triggerTypes)
}

func (t TriggerType) IsValid() bool {
	return slices.Contains(triggerTypes, t)
}

var (
	ErrStepNotFound       = errors.New("step not found")
	ErrStepMoveOutOfRange = errors.New("step cannot be moved in that direction")
)

// Workflow is an ordered list of steps started by a trigger type.
type Workflow struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	Name           string      `json:"name"                       validate:"required"`
	Description    string      `json:"description"`
	TriggerType    TriggerType `json:"trigger_type"               validate:"required,trigger_type"`
	IsActive       bool        `json:"is_active"`
	Steps          []*Step     `json:"steps"                      validate:"dive"`
	ExecutionCount int64       `json:"execution_count"`
	LastExecutedAt *time.Time  `json:"last_executed_at,omitempty"`
	CreatedBy      string      `json:"created_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// StepIndex returns the position of the step with the given id, or -1.
func (w *Workflow) StepIndex(stepID string) int {
	return slices.IndexFunc(w.Steps, func(s *Step) bool {
		return s.ID == stepID
	})
}

// MoveDirection is the direction of an adjacent step swap.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// MoveStep returns a new step list where the step with stepID is swapped with
// its neighbour in the given direction. The receiver's list is left untouched.
func MoveStep(steps []*Step, stepID string, direction MoveDirection) ([]*Step, error) {
	index := slices.IndexFunc(steps, func(s *Step) bool {
		return s.ID == stepID
	})
	if index < 0 {
		return nil, ErrStepNotFound
	}

	var target int

	switch direction {
	case MoveUp:
		target = index - 1
	case MoveDown:
		target = index + 1
	default:
		return nil, ErrStepMoveOutOfRange
	}

	if target < 0 || target >= len(steps) {
		return nil, ErrStepMoveOutOfRange
	}

	moved := slices.Clone(steps)
	moved[index], moved[target] = moved[target], moved[index]

	return moved, nil
}

// CloneSteps copies the step list so a running execution holds a snapshot
// unaffected by later definition saves. Nil entries are kept so validation
// can reject them.
func CloneSteps(steps []*Step) []*Step {
	cloned := make([]*Step, 0, len(steps))

	for _, step := range steps {
		if step == nil {
			cloned = append(cloned, nil)

			continue
		}

		copied := *step
		if step.Config != nil {
			copied.Config = make(map[string]any, len(step.Config))
			for k, v := range step.Config {
				copied.Config[k] = v
			}
		}

		cloned = append(cloned, &copied)
	}

	return cloned
}
