package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
)

const workflowColumns = `
	id
  , organization_id
  , name
  , description
  , trigger_type
  , is_active
  , execution_count
  , last_executed_at
  , created_by
  , created_at
  , updated_at
`

var sortColumns = map[string]string{
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"name":             "name",
	"last_executed_at": "last_executed_at",
}

// WorkflowRepository handles workflow-related database operations. Steps live
// in workflow_steps ordered by position.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	return r.query(ctx, "SELECT "+workflowColumns+" FROM workflows ORDER BY created_at DESC")
}

func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	var (
		conditions []string
		args       []any
	)

	if opts.OrganizationID != "" {
		args = append(args, opts.OrganizationID)
		conditions = append(conditions, "organization_id = $"+strconv.Itoa(len(args)))
	}

	if opts.TriggerType != "" {
		args = append(args, opts.TriggerType)
		conditions = append(conditions, "trigger_type = $"+strconv.Itoa(len(args)))
	}

	if opts.IsActive != nil {
		args = append(args, *opts.IsActive)
		conditions = append(conditions, "is_active = $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows"+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM workflows%s ORDER BY %s %s NULLS LAST, id LIMIT %d OFFSET %d",
		workflowColumns, where, sortColumns[opts.SortBy], direction, opts.Limit, opts.Offset)

	workflows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	err = r.loadSteps(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save upserts the workflow and replaces its step list in one transaction.
// On update, is_active is owned by SetActive and the execution counters by
// RecordExecution; their stored values are returned into workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lastExecutedAt sql.NullTime

	err = tx.QueryRowContext(ctx, `
		INSERT INTO workflows (id, organization_id, name, description, trigger_type, is_active,
			execution_count, last_executed_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			updated_at = EXCLUDED.updated_at
		RETURNING is_active, execution_count, last_executed_at
	`,
		workflow.ID,
		workflow.OrganizationID,
		workflow.Name,
		workflow.Description,
		workflow.TriggerType,
		workflow.IsActive,
		workflow.ExecutionCount,
		workflow.LastExecutedAt,
		workflow.CreatedBy,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	).Scan(&workflow.IsActive, &workflow.ExecutionCount, &lastExecutedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	workflow.LastExecutedAt = nil
	if lastExecutedAt.Valid {
		executedAt := lastExecutedAt.Time.UTC()
		workflow.LastExecutedAt = &executedAt
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	for position, step := range workflow.Steps {
		var config []byte

		config, err = json.Marshal(step.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal step %s configuration: %w", step.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (workflow_id, id, position, step_type, label, config)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, workflow.ID, step.ID, position, step.Type, step.Label, config)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) SetActive(ctx context.Context, id string, active bool) (*models.Workflow, error) {
	return r.updateReturning(ctx, "SetActive", id,
		"UPDATE workflows SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING "+workflowColumns,
		id, active)
}

func (r *WorkflowRepository) GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	return r.query(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE trigger_type = $1 AND is_active ORDER BY created_at, id",
		triggerType)
}

// RecordExecution increments the counter in a single statement so concurrent
// runs never lose an update.
func (r *WorkflowRepository) RecordExecution(ctx context.Context, id string, at time.Time) (*models.Workflow, error) {
	return r.updateReturning(ctx, "RecordExecution", id, `
		UPDATE workflows
		SET execution_count = execution_count + 1, last_executed_at = $2
		WHERE id = $1
		RETURNING `+workflowColumns,
		id, at.UTC())
}

func (r *WorkflowRepository) updateReturning(ctx context.Context, op, id, query string, args ...any) (*models.Workflow, error) {
	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError(op, id, err)
	}

	err = r.loadSteps(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			closeRows(ctx, r.logger, rows)

			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	closeRows(ctx, r.logger, rows)

	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		err := r.loadSteps(ctx, workflow)
		if err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.Workflow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, step_type, label, config
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY position
	`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.Step, 0)

	for rows.Next() {
		var (
			step       models.Step
			configJSON []byte
		)

		err := rows.Scan(&step.ID, &step.Type, &step.Label, &configJSON)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		err = json.Unmarshal(configJSON, &step.Config)
		if err != nil {
			return fmt.Errorf("failed to unmarshal step %s configuration: %w", step.ID, err)
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	workflow.Steps = steps

	return nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow       models.Workflow
		lastExecutedAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.OrganizationID,
		&workflow.Name,
		&workflow.Description,
		&workflow.TriggerType,
		&workflow.IsActive,
		&workflow.ExecutionCount,
		&lastExecutedAt,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastExecutedAt.Valid {
		executedAt := lastExecutedAt.Time.UTC()
		workflow.LastExecutedAt = &executedAt
	}

	return &workflow, nil
}
