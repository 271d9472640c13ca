package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
)

const runColumns = `
	id
  , workflow_id
  , trigger_event
  , status
  , started_at
  , finished_at
  , steps_executed
  , steps_total
  , duration_ms
  , step_results
  , error
`

type ExecutionRunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRunRepository(db *sql.DB, logger *slog.Logger) *ExecutionRunRepository {
	return &ExecutionRunRepository{db: db, logger: logger}
}

func (r *ExecutionRunRepository) Create(ctx context.Context, run *models.ExecutionRun) error {
	results, err := marshalStepResults(run.StepResults)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_runs (id, workflow_id, trigger_event, status, started_at, finished_at,
			steps_executed, steps_total, duration_ms, step_results, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID,
		run.WorkflowID,
		run.TriggerEvent,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		run.StepsExecuted,
		run.StepsTotal,
		run.DurationMs,
		results,
		run.Error,
	)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	return nil
}

// Update only touches running rows whose progress does not move backwards; a
// miss is resolved into the precise reason afterwards.
func (r *ExecutionRunRepository) Update(ctx context.Context, run *models.ExecutionRun) error {
	results, err := marshalStepResults(run.StepResults)
	if err != nil {
		return persistence.NewRunError("Update", run.ID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_runs
		SET status = $2,
			finished_at = $3,
			steps_executed = $4,
			duration_ms = $5,
			step_results = $6,
			error = $7
		WHERE id = $1 AND status = 'running' AND steps_executed <= $4
	`,
		run.ID,
		run.Status,
		run.FinishedAt,
		run.StepsExecuted,
		run.DurationMs,
		results,
		run.Error,
	)
	if err != nil {
		return persistence.NewRunError("Update", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRunError("Update", run.ID, err)
	}

	if affected > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, run.ID)
	if err != nil {
		return err
	}

	err = persistence.CheckRunTransition(current, run)
	if err != nil {
		return err
	}

	return persistence.NewRunError("Update", run.ID, errors.New("concurrent update"))
}

func (r *ExecutionRunRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRun, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM execution_runs WHERE id = $1", id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return run, nil
}

func (r *ExecutionRunRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRun, error) {
	if limit <= 0 {
		limit = persistence.DefaultRunLimit
	}

	return r.query(ctx,
		"SELECT "+runColumns+" FROM execution_runs WHERE workflow_id = $1 ORDER BY started_at DESC LIMIT $2",
		workflowID, limit)
}

func (r *ExecutionRunRepository) ListByStatus(ctx context.Context, status models.RunStatus, limit int) ([]*models.ExecutionRun, error) {
	if limit <= 0 {
		limit = persistence.DefaultRunLimit
	}

	return r.query(ctx,
		"SELECT "+runColumns+" FROM execution_runs WHERE status = $1 ORDER BY started_at DESC LIMIT $2",
		status, limit)
}

func (r *ExecutionRunRepository) query(ctx context.Context, query string, args ...any) ([]*models.ExecutionRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution runs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	runs := make([]*models.ExecutionRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution run: %w", err)
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution runs: %w", err)
	}

	return runs, nil
}

func marshalStepResults(results []models.StepResult) ([]byte, error) {
	if results == nil {
		results = []models.StepResult{}
	}

	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step results: %w", err)
	}

	return data, nil
}

func scanRun(row scanner) (*models.ExecutionRun, error) {
	var (
		run         models.ExecutionRun
		finishedAt  sql.NullTime
		durationMs  sql.NullInt64
		resultsJSON []byte
	)

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.TriggerEvent,
		&run.Status,
		&run.StartedAt,
		&finishedAt,
		&run.StepsExecuted,
		&run.StepsTotal,
		&durationMs,
		&resultsJSON,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		finished := finishedAt.Time.UTC()
		run.FinishedAt = &finished
	}

	if durationMs.Valid {
		duration := durationMs.Int64
		run.DurationMs = &duration
	}

	err = json.Unmarshal(resultsJSON, &run.StepResults)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}

	return &run, nil
}
