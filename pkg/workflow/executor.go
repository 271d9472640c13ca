package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/engageflow/pkg/condition"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/otelhelper"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/registry"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StepsContextKey holds the output of every executed action step, keyed by
// step ID, so later steps can template against it.
const StepsContextKey = "steps"

// Executor walks the steps of a run in order, starting at a given index.
type Executor struct {
	registry      *registry.Registry
	recorder      *Recorder
	continuations persistence.ContinuationRepository
	evaluator     *condition.Evaluator
	clock         clockwork.Clock
	tracer        trace.Tracer
	logger        *slog.Logger
}

// NewExecutor creates an executor. A nil tracer falls back to the global
// tracer provider.
func NewExecutor(
	registry *registry.Registry,
	recorder *Recorder,
	continuations persistence.ContinuationRepository,
	clock clockwork.Clock,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Executor {
	if tracer == nil {
		tracer = otel.Tracer("engageflow/workflow")
	}

	return &Executor{
		registry:      registry,
		recorder:      recorder,
		continuations: continuations,
		evaluator:     condition.NewEvaluator(),
		clock:         clock,
		tracer:        tracer,
		logger:        logger.With("module", "workflow_executor"),
	}
}

// Run executes steps[start:] against rc. It returns nil when the run either
// reached a terminal status or was suspended by a wait step, and a
// *RunFatalError when the run had to be aborted.
func (e *Executor) Run(ctx context.Context, run *models.ExecutionRun, steps []*models.Step, rc models.Context, start int) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, run.WorkflowID),
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.TriggerTypeKey, run.TriggerEvent),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", run.WorkflowID, "run_id", run.ID)

	if run.Status.IsTerminal() {
		logger.WarnContext(ctx, "Run already finished, nothing to execute", "status", run.Status)

		return nil
	}

	for i := start; i < len(steps); i++ {
		done, err := e.runStep(ctx, logger, run, steps, rc, i)
		if err != nil {
			otelhelper.SetError(span, err)

			return e.abort(ctx, logger, run, err)
		}

		if done {
			return nil
		}
	}

	status := models.RunStatusCompleted
	if run.HasFailedStep() {
		status = models.RunStatusFailed
		span.SetStatus(codes.Error, "one or more steps failed")
	}

	err := e.finish(ctx, run, status, nil)
	if err != nil {
		return &RunFatalError{RunID: run.ID, Err: err}
	}

	logger.InfoContext(ctx, "Run finished", "status", run.Status, "steps_executed", run.StepsExecuted)

	return nil
}

// runStep executes steps[i]. done is true when the run must not continue in
// this invocation, either because it was suspended or already finished.
func (e *Executor) runStep(
	ctx context.Context,
	logger *slog.Logger,
	run *models.ExecutionRun,
	steps []*models.Step,
	rc models.Context,
	i int,
) (bool, error) {
	step := steps[i]

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepTypeKey, string(step.Type)),
		attribute.Int(otelhelper.StepIndexKey, i),
	)
	defer span.End()

	logger = logger.With("step_id", step.ID, "step_type", step.Type, "step_index", i)

	switch step.Type {
	case models.StepWait:
		return true, e.suspend(ctx, logger, run, steps, rc, i)
	case models.StepCondition:
		return e.evaluate(ctx, logger, run, step, rc, i)
	default:
		return false, e.dispatch(ctx, logger, span, run, step, rc, i)
	}
}

func (e *Executor) suspend(
	ctx context.Context,
	logger *slog.Logger,
	run *models.ExecutionRun,
	steps []*models.Step,
	rc models.Context,
	i int,
) error {
	decoded, err := models.DecodeStepConfig(models.StepWait, steps[i].Config)
	if err != nil {
		return err
	}

	cfg, ok := decoded.(models.WaitConfig)
	if !ok {
		return fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	now := e.clock.Now().UTC()

	continuation := &models.Continuation{
		RunID:         run.ID,
		WorkflowID:    run.WorkflowID,
		NextStepIndex: i + 1,
		ResumeAt:      now.Add(time.Duration(cfg.Minutes) * time.Minute),
		Steps:         steps,
		Context:       rc,
		CreatedAt:     now,
	}

	err = e.continuations.Save(ctx, continuation)
	if err != nil {
		return fmt.Errorf("failed to save continuation: %w", err)
	}

	e.record(run, steps[i], models.StepStatusSuspended, nil)
	run.StepsExecuted = i + 1

	err = e.recorder.Progress(ctx, run)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Run suspended", "resume_at", continuation.ResumeAt)

	return nil
}

func (e *Executor) evaluate(
	ctx context.Context,
	logger *slog.Logger,
	run *models.ExecutionRun,
	step *models.Step,
	rc models.Context,
	i int,
) (bool, error) {
	decoded, err := models.DecodeStepConfig(models.StepCondition, step.Config)
	if err != nil {
		return false, err
	}

	cfg, ok := decoded.(models.ConditionConfig)
	if !ok {
		return false, fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	passed, err := e.evaluator.Evaluate(rc, cfg)
	if err != nil {
		stepErr := &StepError{StepID: step.ID, Type: step.Type, Err: err}

		logger.WarnContext(ctx, "Condition could not be evaluated", "error", err)
		e.record(run, step, models.StepStatusFailed, stepErr)
		run.StepsExecuted = i + 1

		return true, e.finish(ctx, run, models.RunStatusFailed, stepErr)
	}

	if !passed {
		logger.InfoContext(ctx, "Condition not met, stopping run")
		e.record(run, step, models.StepStatusShortCircuited, nil)
		run.StepsExecuted = i + 1

		return true, e.finish(ctx, run, models.RunStatusCompleted, nil)
	}

	e.record(run, step, models.StepStatusSucceeded, nil)
	run.StepsExecuted = i + 1

	return false, e.recorder.Progress(ctx, run)
}

func (e *Executor) dispatch(
	ctx context.Context,
	logger *slog.Logger,
	span trace.Span,
	run *models.ExecutionRun,
	step *models.Step,
	rc models.Context,
	i int,
) error {
	action, err := e.registry.CreateAction(ctx, step.Type, step.Config)
	if err != nil {
		return err
	}

	result, err := e.execute(ctx, logger, action, rc)

	switch {
	case err != nil:
		stepErr := &StepError{StepID: step.ID, Type: step.Type, Err: err}

		otelhelper.SetError(span, stepErr)
		logger.ErrorContext(ctx, "Step failed, continuing with next step", "error", err)
		e.record(run, step, models.StepStatusFailed, stepErr)
	case result != nil && result.Skipped:
		logger.DebugContext(ctx, "Step skipped")
		e.record(run, step, models.StepStatusSkipped, nil)
	default:
		e.record(run, step, models.StepStatusSucceeded, nil)
	}

	if result != nil && result.Output != nil {
		outputs, ok := rc[StepsContextKey].(map[string]any)
		if !ok {
			outputs = map[string]any{}
			rc[StepsContextKey] = outputs
		}

		outputs[step.ID] = result.Output
	}

	run.StepsExecuted = i + 1

	return e.recorder.Progress(ctx, run)
}

func (e *Executor) execute(ctx context.Context, logger *slog.Logger, action protocol.Action, rc models.Context) (result *protocol.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	return action.Execute(ctx, rc, logger)
}

func (e *Executor) record(run *models.ExecutionRun, step *models.Step, status models.StepStatus, err error) {
	result := models.StepResult{
		StepID: step.ID,
		Type:   step.Type,
		Status: status,
		At:     e.clock.Now().UTC(),
	}

	if err != nil {
		result.Error = err.Error()
	}

	run.StepResults = append(run.StepResults, result)
}

func (e *Executor) finish(ctx context.Context, run *models.ExecutionRun, status models.RunStatus, cause error) error {
	err := e.recorder.Finish(ctx, run, status, cause)
	if err != nil {
		return err
	}

	err = e.continuations.Delete(ctx, run.ID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to delete continuation of finished run", "run_id", run.ID, "error", err)
	}

	return nil
}

func (e *Executor) abort(ctx context.Context, logger *slog.Logger, run *models.ExecutionRun, cause error) error {
	logger.ErrorContext(ctx, "Run aborted", "error", cause)

	fatal := &RunFatalError{RunID: run.ID, Err: cause}

	if run.Status.IsTerminal() {
		return fatal
	}

	err := e.finish(ctx, run, models.RunStatusFailed, cause)
	if err != nil {
		fatal.Err = errors.Join(cause, err)
	}

	return fatal
}
