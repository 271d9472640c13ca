package models

import "time"

// RunStatus is the lifecycle state of an execution run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether no further changes are allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// TriggerEventManual is the trigger event recorded for execute-now runs.
const TriggerEventManual = "manual"

// StepStatus is the outcome of a single step within a run.
type StepStatus string

const (
	StepStatusSucceeded      StepStatus = "succeeded"
	StepStatusFailed         StepStatus = "failed"
	StepStatusSkipped        StepStatus = "skipped"
	StepStatusShortCircuited StepStatus = "short_circuited"
	StepStatusSuspended      StepStatus = "suspended"
)

// StepResult records what happened to one step of a run.
type StepResult struct {
	StepID string     `json:"step_id"`
	Type   StepType   `json:"type"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
	At     time.Time  `json:"at"`
}

// ExecutionRun is the history record of one instantiation of a workflow.
type ExecutionRun struct {
	ID            string       `json:"id"`
	WorkflowID    string       `json:"workflow_id"`
	TriggerEvent  string       `json:"trigger_event"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	Status        RunStatus    `json:"status"`
	StepsExecuted int          `json:"steps_executed"`
	StepsTotal    int          `json:"steps_total"`
	DurationMs    *int64       `json:"duration_ms,omitempty"`
	StepResults   []StepResult `json:"step_results,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// HasFailedStep reports whether any recorded step failed.
func (r *ExecutionRun) HasFailedStep() bool {
	for _, result := range r.StepResults {
		if result.Status == StepStatusFailed {
			return true
		}
	}

	return false
}

// Continuation is the persisted resumable state of a run suspended by a wait
// step. Steps is the snapshot the run started with.
type Continuation struct {
	RunID         string    `json:"run_id"`
	WorkflowID    string    `json:"workflow_id"`
	NextStepIndex int       `json:"next_step_index"`
	ResumeAt      time.Time `json:"resume_at"`
	Steps         []*Step   `json:"steps"`
	Context       Context   `json:"context"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
}
