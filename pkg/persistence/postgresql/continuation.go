package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/engageflow/pkg/models"
)

const continuationColumns = `
	run_id
  , workflow_id
  , next_step_index
  , resume_at
  , steps
  , context
  , attempts
  , created_at
`

type ContinuationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewContinuationRepository(db *sql.DB, logger *slog.Logger) *ContinuationRepository {
	return &ContinuationRepository{db: db, logger: logger}
}

func (r *ContinuationRepository) Save(ctx context.Context, continuation *models.Continuation) error {
	steps, err := json.Marshal(continuation.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation steps: %w", err)
	}

	runContext, err := json.Marshal(continuation.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO continuations (run_id, workflow_id, next_step_index, resume_at, steps, context, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			next_step_index = EXCLUDED.next_step_index,
			resume_at = EXCLUDED.resume_at,
			steps = EXCLUDED.steps,
			context = EXCLUDED.context,
			attempts = EXCLUDED.attempts
	`,
		continuation.RunID,
		continuation.WorkflowID,
		continuation.NextStepIndex,
		continuation.ResumeAt,
		steps,
		runContext,
		continuation.Attempts,
		continuation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save continuation %s: %w", continuation.RunID, err)
	}

	return nil
}

// ClaimDue leases due continuations with SKIP LOCKED so concurrent resumers
// never claim the same row.
func (r *ContinuationRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Continuation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		UPDATE continuations
		SET resume_at = $2, attempts = attempts + 1
		WHERE run_id IN (
			SELECT run_id FROM continuations
			WHERE resume_at <= $1
			ORDER BY resume_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+continuationColumns,
		now.UTC(), now.Add(lease).UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim continuations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	claimed := make([]*models.Continuation, 0)

	for rows.Next() {
		var (
			continuation models.Continuation
			steps        []byte
			runContext   []byte
		)

		err := rows.Scan(
			&continuation.RunID,
			&continuation.WorkflowID,
			&continuation.NextStepIndex,
			&continuation.ResumeAt,
			&steps,
			&runContext,
			&continuation.Attempts,
			&continuation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan continuation: %w", err)
		}

		err = json.Unmarshal(steps, &continuation.Steps)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal continuation steps: %w", err)
		}

		err = json.Unmarshal(runContext, &continuation.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal continuation context: %w", err)
		}

		claimed = append(claimed, &continuation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating continuations: %w", err)
	}

	return claimed, nil
}

func (r *ContinuationRepository) Delete(ctx context.Context, runID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM continuations WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("failed to delete continuation %s: %w", runID, err)
	}

	return nil
}
