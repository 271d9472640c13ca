package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultResumeInterval = 15 * time.Second
	DefaultResumeLease    = 5 * time.Minute
	DefaultResumeBatch    = 100
)

// Resumer periodically claims due continuations and resumes their runs.
// A claim pushes the continuation's due time forward by the lease, so a
// continuation whose worker dies is picked up again once the lease expires.
type Resumer struct {
	runs          persistence.ExecutionRunRepository
	continuations persistence.ContinuationRepository
	engine        *Engine
	clock         clockwork.Clock
	interval      time.Duration
	lease         time.Duration
	batch         int
	logger        *slog.Logger
}

func NewResumer(p persistence.Persistence, engine *Engine, clock clockwork.Clock, interval time.Duration, logger *slog.Logger) *Resumer {
	if interval <= 0 {
		interval = DefaultResumeInterval
	}

	return &Resumer{
		runs:          p.ExecutionRunRepository(),
		continuations: p.ContinuationRepository(),
		engine:        engine,
		clock:         clock,
		interval:      interval,
		lease:         DefaultResumeLease,
		batch:         DefaultResumeBatch,
		logger:        logger.With("module", "resumer"),
	}
}

// Run polls until ctx is cancelled.
func (r *Resumer) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "Resumer started", "interval", r.interval)

	for {
		_, err := r.ResumeDue(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to resume due runs", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Resumer stopped")

			return nil
		case <-ticker.Chan():
		}
	}
}

// ResumeDue claims every continuation due now and resumes its run. It returns
// the number of runs resumed.
func (r *Resumer) ResumeDue(ctx context.Context) (int, error) {
	due, err := r.continuations.ClaimDue(ctx, r.clock.Now().UTC(), r.lease, r.batch)
	if err != nil {
		return 0, err
	}

	resumed := 0

	for _, continuation := range due {
		logger := r.logger.With("run_id", continuation.RunID, "workflow_id", continuation.WorkflowID)

		run, err := r.runs.GetByID(ctx, continuation.RunID)

		switch {
		case persistence.IsRunNotFound(err):
			logger.WarnContext(ctx, "Dropping continuation of unknown run")
			r.drop(ctx, logger, continuation)

			continue
		case err != nil:
			logger.ErrorContext(ctx, "Failed to load suspended run", "error", err)

			continue
		case run.Status != models.RunStatusRunning:
			logger.InfoContext(ctx, "Dropping continuation of finished run", "status", run.Status)
			r.drop(ctx, logger, continuation)

			continue
		}

		err = r.engine.Resume(ctx, run, continuation)
		if err != nil {
			logger.DebugContext(ctx, "Run not resumed", "error", err)

			continue
		}

		logger.InfoContext(ctx, "Run resumed", "next_step_index", continuation.NextStepIndex, "attempts", continuation.Attempts)
		resumed++
	}

	return resumed, nil
}

func (r *Resumer) drop(ctx context.Context, logger *slog.Logger, continuation *models.Continuation) {
	err := r.continuations.Delete(ctx, continuation.RunID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete continuation", "error", err)
	}
}
