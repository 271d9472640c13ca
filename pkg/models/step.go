package models

import "slices"

// StepType is the kind of work a step performs.
type StepType string

const (
	StepSendMessage      StepType = "send_message"
	StepSendEmail        StepType = "send_email"
	StepSendNotification StepType = "send_notification"
	StepAssignAgent      StepType = "assign_agent"
	StepAssignLead       StepType = "assign_lead"
	StepUpdateStatus     StepType = "update_status"
	StepAddTag           StepType = "add_tag"
	StepWait             StepType = "wait"
	StepAIReply          StepType = "ai_reply"
	StepCondition        StepType = "condition"
)

var stepTypes = []StepType{
	StepSendMessage,
	StepSendEmail,
	StepSendNotification,
	StepAssignAgent,
	StepAssignLead,
	StepUpdateStatus,
	StepAddTag,
	StepWait,
	StepAIReply,
	StepCondition,
}

// StepTypes returns every registered step type.
func StepTypes() []StepType {
	return slices.Clone(stepTypes)
}

func (t StepType) IsValid() bool {
	return slices.Contains(stepTypes, t)
}

// IsControl reports whether the step is interpreted by the executor itself
// rather than dispatched to an action.
func (t StepType) IsControl() bool {
	return t == StepWait || t == StepCondition
}

// Step is one ordered unit of work. The ID is stable across reorders.
type Step struct {
	ID     string         `json:"id"               validate:"required"`
	Type   StepType       `json:"type"             validate:"required,step_type"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}
