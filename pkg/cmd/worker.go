package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/engageflow/pkg/eventbus"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/dukex/engageflow/pkg/registry"
	"github.com/dukex/engageflow/pkg/scheduler"
	"github.com/dukex/engageflow/pkg/workflow"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

type WorkerConfig struct {
	// Schedule is the cron expression of the scheduled trigger. Empty disables
	// the scheduler.
	Schedule       string
	ResumeInterval time.Duration
	Tracer         trace.Tracer
	Clock          clockwork.Clock
}

// Worker consumes domain events and execution requests from the bus, runs the
// matching workflows and resumes suspended runs once their wait elapses.
type Worker struct {
	bus       eventbus.EventBus
	engine    *workflow.Engine
	matcher   *workflow.TriggerMatcher
	resumer   *workflow.Resumer
	scheduler *scheduler.Scheduler
	logger    *slog.Logger

	wg sync.WaitGroup
}

func NewWorker(
	p persistence.Persistence,
	bus eventbus.EventBus,
	reg *registry.Registry,
	cfg WorkerConfig,
	logger *slog.Logger,
) (*Worker, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	recorder := workflow.NewRecorder(p, bus, cfg.Clock, logger)
	executor := workflow.NewExecutor(reg, recorder, p.ContinuationRepository(), cfg.Clock, cfg.Tracer, logger)
	engine := workflow.NewEngine(recorder, executor, logger)

	w := &Worker{
		bus:     bus,
		engine:  engine,
		matcher: workflow.NewTriggerMatcher(p.WorkflowRepository(), engine, logger),
		resumer: workflow.NewResumer(p, engine, cfg.Clock, cfg.ResumeInterval, logger),
		logger:  logger.With("module", "worker"),
	}

	if cfg.Schedule != "" {
		sched, err := scheduler.New(cfg.Schedule, bus, cfg.Clock, logger)
		if err != nil {
			return nil, err
		}

		w.scheduler = sched
	}

	return w, nil
}

func (w *Worker) Matcher() *workflow.TriggerMatcher {
	return w.matcher
}

// Start registers the bus handlers and launches the consumers. It returns once
// everything is running; cancelling ctx stops them.
func (w *Worker) Start(ctx context.Context) error {
	err := w.matcher.RegisterHandlers(w.bus)
	if err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	err = w.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	if w.scheduler != nil {
		err = w.scheduler.Start(ctx)
		if err != nil {
			return err
		}
	}

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		_ = w.resumer.Run(ctx)
	}()

	w.logger.InfoContext(ctx, "Worker started", "scheduler", w.scheduler != nil)

	return nil
}

// Stop waits for the resumer to exit and for in-flight runs to finish or
// suspend. The caller cancels the context passed to Start first.
func (w *Worker) Stop(ctx context.Context) {
	if w.scheduler != nil {
		w.scheduler.Stop(ctx)
	}

	w.wg.Wait()
	w.engine.Wait()

	w.logger.InfoContext(ctx, "Worker stopped")
}
