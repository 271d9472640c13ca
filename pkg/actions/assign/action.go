package assign

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/template"
)

type Action struct {
	stepType models.StepType
	config   models.AssignConfig
	assigner protocol.Assigner
}

func NewAction(stepType models.StepType, config models.AssignConfig, assigner protocol.Assigner) *Action {
	return &Action{stepType: stepType, config: config, assigner: assigner}
}

func (a *Action) Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*protocol.Result, error) {
	if a.assigner == nil {
		return nil, fmt.Errorf("%s: %w", a.stepType, protocol.ErrCollaboratorMissing)
	}

	entity, ok := a.target(rc)
	if !ok {
		return nil, fmt.Errorf("%s: %w", a.stepType, protocol.ErrNoTargetEntity)
	}

	assignee, err := template.RenderContext(a.config.AssigneeID, rc)
	if err != nil {
		return nil, err
	}

	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, fmt.Errorf("%w: assignee resolved to an empty id", models.ErrInvalidStepConfig)
	}

	err = a.assigner.Assign(ctx, entity, assignee)
	if err != nil {
		return nil, fmt.Errorf("assign %s: %w", entity, err)
	}

	logger.DebugContext(ctx, "Entity assigned", "action_type", a.stepType, "entity", entity.String(), "assignee", assignee)

	return &protocol.Result{Output: map[string]any{"entity": entity, "assignee_id": assignee}}, nil
}

func (a *Action) target(rc models.Context) (models.EntityRef, bool) {
	if a.config.Entity != "" {
		return rc.ResolveEntity(a.config.Entity)
	}

	if a.stepType == models.StepAssignLead {
		return rc.ResolveEntity("lead")
	}

	if entity, ok := rc.ResolveEntity("conversation"); ok {
		return entity, true
	}

	return rc.ResolveEntity("")
}
