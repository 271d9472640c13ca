package workflow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/engageflow/pkg/models"
)

var ErrRunActive = errors.New("run is already executing")

// Engine starts and resumes runs in the background. Every run executes
// against a snapshot of the workflow's steps taken when it started, so edits
// made while it is in flight never affect it.
type Engine struct {
	recorder *Recorder
	executor *Executor
	logger   *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]struct{}
}

func NewEngine(recorder *Recorder, executor *Executor, logger *slog.Logger) *Engine {
	return &Engine{
		recorder: recorder,
		executor: executor,
		logger:   logger.With("module", "workflow_engine"),
		active:   make(map[string]struct{}),
	}
}

// Start records a new run and executes it asynchronously. The returned run is
// a copy taken right after it was created, with status running.
func (e *Engine) Start(ctx context.Context, workflow *models.Workflow, triggerEvent string, rc models.Context) (*models.ExecutionRun, error) {
	snapshot := *workflow
	snapshot.Steps = models.CloneSteps(workflow.Steps)

	run, err := e.recorder.Begin(ctx, &snapshot, triggerEvent)
	if err != nil {
		return nil, err
	}

	created := *run
	created.StepResults = slices.Clone(run.StepResults)

	e.acquire(run.ID)
	e.launch(ctx, run, snapshot.Steps, rc, 0)

	return &created, nil
}

// Resume continues a suspended run from its continuation. It returns
// ErrRunActive when the run is already executing in this process.
func (e *Engine) Resume(ctx context.Context, run *models.ExecutionRun, continuation *models.Continuation) error {
	if !e.acquire(run.ID) {
		return ErrRunActive
	}

	start := max(continuation.NextStepIndex, run.StepsExecuted)

	rc := continuation.Context
	if rc == nil {
		rc = models.Context{}
	}

	e.launch(ctx, run, continuation.Steps, rc, start)

	return nil
}

// Wait blocks until every run started or resumed so far has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) launch(ctx context.Context, run *models.ExecutionRun, steps []*models.Step, rc models.Context, start int) {
	// The run outlives the request or message that started it.
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer e.release(run.ID)

		err := e.executor.Run(ctx, run, steps, rc, start)
		if err != nil {
			e.logger.ErrorContext(ctx, "Run execution failed", "run_id", run.ID, "workflow_id", run.WorkflowID, "error", err)
		}
	}()
}

func (e *Engine) acquire(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[runID]; ok {
		return false
	}

	e.active[runID] = struct{}{}

	return true
}

func (e *Engine) release(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.active, runID)
}
