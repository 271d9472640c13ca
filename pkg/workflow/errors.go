package workflow

import (
	"fmt"

	"github.com/dukex/engageflow/pkg/models"
)

// StepError is an isolated action failure. It is recorded in the run's step
// results and execution continues with the next step.
type StepError struct {
	StepID string
	Type   models.StepType
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.StepID, e.Type, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RunFatalError stops a run: a missing handler, an undecodable config at
// dispatch or a persistence failure while recording progress.
type RunFatalError struct {
	RunID string
	Err   error
}

func (e *RunFatalError) Error() string {
	return fmt.Sprintf("run %s aborted: %v", e.RunID, e.Err)
}

func (e *RunFatalError) Unwrap() error {
	return e.Err
}
