package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/engageflow/pkg/eventbus"
	"github.com/dukex/engageflow/pkg/events"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Recorder owns the execution run lifecycle and the workflow execution
// counters.
type Recorder struct {
	workflows persistence.WorkflowRepository
	runs      persistence.ExecutionRunRepository
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewRecorder creates a recorder. publisher may be nil, in which case no
// lifecycle events are emitted.
func NewRecorder(p persistence.Persistence, publisher eventbus.EventPublisher, clock clockwork.Clock, logger *slog.Logger) *Recorder {
	if publisher == nil {
		publisher = eventbus.NopPublisher{}
	}

	return &Recorder{
		workflows: p.WorkflowRepository(),
		runs:      p.ExecutionRunRepository(),
		publisher: publisher,
		clock:     clock,
		logger:    logger.With("module", "run_recorder"),
	}
}

// Begin bumps the workflow's execution counters and creates a running run.
// The counters move for every run regardless of its outcome.
func (r *Recorder) Begin(ctx context.Context, workflow *models.Workflow, triggerEvent string) (*models.ExecutionRun, error) {
	now := r.clock.Now().UTC()

	_, err := r.workflows.RecordExecution(ctx, workflow.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record execution of workflow %s: %w", workflow.ID, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}

	run := &models.ExecutionRun{
		ID:           id.String(),
		WorkflowID:   workflow.ID,
		TriggerEvent: triggerEvent,
		StartedAt:    now,
		Status:       models.RunStatusRunning,
		StepsTotal:   len(workflow.Steps),
		StepResults:  []models.StepResult{},
	}

	err = r.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run for workflow %s: %w", workflow.ID, err)
	}

	r.publish(ctx, run.WorkflowID, events.RunStarted{
		BaseEvent:    events.NewBaseEvent(events.RunStartedEvent, run.WorkflowID),
		RunID:        run.ID,
		TriggerEvent: triggerEvent,
		StepsTotal:   run.StepsTotal,
	})

	return run, nil
}

// Progress persists step advancement of a running run.
func (r *Recorder) Progress(ctx context.Context, run *models.ExecutionRun) error {
	if run.Status.IsTerminal() {
		return persistence.NewRunError("Progress", run.ID, persistence.ErrRunTerminal)
	}

	return r.runs.Update(ctx, run)
}

// Finish moves the run to a terminal status and stamps its duration.
func (r *Recorder) Finish(ctx context.Context, run *models.ExecutionRun, status models.RunStatus, cause error) error {
	if run.Status.IsTerminal() {
		return persistence.NewRunError("Finish", run.ID, persistence.ErrRunTerminal)
	}

	if !status.IsTerminal() {
		return fmt.Errorf("cannot finish run %s with status %q", run.ID, status)
	}

	finishedAt := r.clock.Now().UTC()
	durationMs := finishedAt.Sub(run.StartedAt).Milliseconds()

	finished := *run
	finished.Status = status
	finished.FinishedAt = &finishedAt
	finished.DurationMs = &durationMs

	if cause != nil {
		finished.Error = cause.Error()
	}

	err := r.runs.Update(ctx, &finished)
	if err != nil {
		return err
	}

	*run = finished

	base := events.NewBaseEvent(events.RunCompletedEvent, run.WorkflowID)
	if status == models.RunStatusCompleted {
		r.publish(ctx, run.WorkflowID, events.RunCompleted{
			BaseEvent:     base,
			RunID:         run.ID,
			StepsExecuted: run.StepsExecuted,
			DurationMs:    durationMs,
		})
	} else {
		base.Type = events.RunFailedEvent
		r.publish(ctx, run.WorkflowID, events.RunFailed{
			BaseEvent:     base,
			RunID:         run.ID,
			StepsExecuted: run.StepsExecuted,
			DurationMs:    durationMs,
			Error:         run.Error,
		})
	}

	return nil
}

func (r *Recorder) publish(ctx context.Context, key string, event eventbus.Event) {
	err := r.publisher.Publish(ctx, key, event)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to publish run lifecycle event", "event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}
