package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukex/engageflow/pkg/condition"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/dukex/engageflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// Workflow is the workflow definition store. Every mutation validates the
// full definition first and persists nothing when validation fails. Saving a
// definition never starts a run.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	conditions  *condition.Evaluator
}

// NewWorkflow creates a new workflow service. The registry provides the config
// schema of each step type.
func NewWorkflow(persistence persistence.Persistence, registry *registry.Registry) *Workflow {
	return &Workflow{
		persistence: persistence,
		registry:    registry,
		validate:    NewValidator(),
		conditions:  condition.NewEvaluator(),
	}
}

// NewValidator returns a validator with the trigger_type and step_type tags
// registered.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("trigger_type", func(fl validator.FieldLevel) bool {
		return models.TriggerType(fl.Field().String()).IsValid()
	})

	_ = validate.RegisterValidation("step_type", func(fl validator.FieldLevel) bool {
		return models.StepType(fl.Field().String()).IsValid()
	})

	return validate
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Definition is the editable content of a workflow. Activation and execution
// counters are managed separately.
type Definition struct {
	Name        string
	Description string
	TriggerType models.TriggerType
	Steps       []*models.Step
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	OrganizationID string
	TriggerType    models.TriggerType
	IsActive       *bool

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

var allowedSorts = []string{"created_at", "updated_at", "name", "last_executed_at"}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	err := w.validateListWorkflowsRequest(&req)
	if err != nil {
		return nil, err
	}

	opts := persistence.ListWorkflowsOptions{
		Limit:          req.Limit,
		Offset:         req.Offset,
		OrganizationID: req.OrganizationID,
		TriggerType:    req.TriggerType,
		IsActive:       req.IsActive,
		SortBy:         req.SortBy,
		SortOrder:      req.SortOrder,
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = persistence.DefaultListLimit
	}

	if req.Limit > persistence.MaxListLimit {
		req.Limit = persistence.MaxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"ListWorkflows",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"ListWorkflows",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.TriggerType != "" && !req.TriggerType.IsValid() {
		return NewValidationError(
			"ListWorkflows",
			"INVALID_TRIGGER_TYPE",
			fmt.Sprintf("invalid trigger type '%s'", req.TriggerType),
			ErrInvalidTriggerType,
		)
	}

	req.OrganizationID = strings.TrimSpace(req.OrganizationID)

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create validates and stores a new workflow. New workflows start inactive
// unless IsActive is set, with zeroed execution counters.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, NewValidationError("Create", "INVALID_REQUEST", "workflow is required", ErrWorkflowNil)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	now := time.Now().UTC()

	created := *workflow
	created.ID = id.String()
	created.Name = strings.TrimSpace(created.Name)
	created.Steps = models.CloneSteps(workflow.Steps)
	created.ExecutionCount = 0
	created.LastExecutedAt = nil
	created.CreatedAt = now
	created.UpdatedAt = now

	err = w.validateDefinition("Create", &created)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return &created, nil
}

// SaveDefinition replaces the name, description, trigger type and steps of an
// existing workflow. Activation, ownership and counters are preserved.
func (w *Workflow) SaveDefinition(ctx context.Context, workflowID string, definition Definition) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = strings.TrimSpace(definition.Name)
	updated.Description = definition.Description
	updated.TriggerType = definition.TriggerType
	updated.Steps = models.CloneSteps(definition.Steps)

	err = w.validateDefinition("SaveDefinition", &updated)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return &updated, nil
}

// SetActive toggles whether events start the workflow. In-flight runs are
// unaffected.
func (w *Workflow) SetActive(ctx context.Context, workflowID string, active bool) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().SetActive(ctx, workflowID, active)
}

// MoveStep swaps a step with its neighbour and persists the new order.
func (w *Workflow) MoveStep(ctx context.Context, workflowID, stepID string, direction models.MoveDirection) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if direction != models.MoveUp && direction != models.MoveDown {
		return nil, NewValidationError(
			"MoveStep",
			"INVALID_DIRECTION",
			fmt.Sprintf("invalid direction '%s', allowed: up, down", direction),
			ErrInvalidRequest,
		)
	}

	steps, err := models.MoveStep(existing.Steps, stepID, direction)
	if err != nil {
		return nil, &ServiceError{Op: "MoveStep", Err: err}
	}

	updated := *existing
	updated.Steps = steps

	err = w.persistence.WorkflowRepository().Save(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to move step: %w", err)
	}

	return &updated, nil
}

// Delete removes a workflow by its ID. Its run history is kept.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	err := w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return err
		}

		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// RunHistory returns the most recent runs of a workflow, newest first.
func (w *Workflow) RunHistory(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRun, error) {
	_, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > persistence.MaxListLimit {
		limit = persistence.DefaultRunLimit
	}

	return w.persistence.ExecutionRunRepository().ListByWorkflow(ctx, workflowID, limit)
}

// GetRun retrieves a single execution run.
func (w *Workflow) GetRun(ctx context.Context, runID string) (*models.ExecutionRun, error) {
	return w.persistence.ExecutionRunRepository().GetByID(ctx, runID)
}

func (w *Workflow) validateDefinition(op string, workflow *models.Workflow) error {
	seen := make(map[string]struct{}, len(workflow.Steps))

	for i, step := range workflow.Steps {
		if step == nil {
			return NewValidationError(op, "INVALID_STEP", fmt.Sprintf("step %d is empty", i), ErrInvalidRequest)
		}

		step.ID = strings.TrimSpace(step.ID)
		if step.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate step ID: %w", err)
			}

			step.ID = id.String()
		}

		if _, ok := seen[step.ID]; ok {
			return NewValidationError(op, "DUPLICATE_STEP_ID", fmt.Sprintf("step id '%s' is used more than once", step.ID), ErrDuplicateStepID)
		}

		seen[step.ID] = struct{}{}
	}

	err := w.validate.Struct(workflow)
	if err != nil {
		return w.translateValidationError(op, err)
	}

	for _, step := range workflow.Steps {
		err := w.validateStepConfig(op, step)
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Workflow) translateValidationError(op string, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return NewValidationError(op, "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	fe := validationErrors[0]

	switch fe.StructField() {
	case "Name":
		return NewValidationError(op, "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	case "TriggerType":
		return NewValidationError(op, "INVALID_TRIGGER_TYPE", fmt.Sprintf("invalid trigger type '%v'", fe.Value()), ErrInvalidTriggerType)
	case "Type":
		return NewValidationError(op, "INVALID_STEP_TYPE", fmt.Sprintf("invalid step type '%v' at %s", fe.Value(), fe.Namespace()), ErrInvalidStepType)
	default:
		return NewValidationError(op, "INVALID_REQUEST", fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()), ErrInvalidRequest)
	}
}

func (w *Workflow) validateStepConfig(op string, step *models.Step) error {
	config := step.Config
	if config == nil {
		config = map[string]any{}
	}

	if w.registry != nil {
		schema, ok := w.registry.Schema(step.Type)
		if ok {
			err := validateJSONSchema(config, schema)
			if err != nil {
				return NewValidationError(op, "INVALID_STEP_CONFIG", fmt.Sprintf("step %s: %v", step.ID, err), ErrInvalidStepConfig)
			}
		}
	}

	decoded, err := models.DecodeStepConfig(step.Type, config)
	if err != nil {
		return NewValidationError(op, "INVALID_STEP_CONFIG", fmt.Sprintf("step %s: %v", step.ID, err), ErrInvalidStepConfig)
	}

	if cfg, ok := decoded.(models.ConditionConfig); ok {
		err := w.conditions.Validate(cfg)
		if err != nil {
			return NewValidationError(op, "INVALID_CONDITION", fmt.Sprintf("step %s: %v", step.ID, err), ErrInvalidCondition)
		}
	}

	return nil
}

// validateJSONSchema validates step config against the step type's schema.
func validateJSONSchema(config map[string]any, schema *models.JSONSchema) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}
