package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/template"
)

type Action struct {
	config  models.StatusConfig
	updater protocol.EntityUpdater
}

func NewAction(config models.StatusConfig, updater protocol.EntityUpdater) *Action {
	return &Action{config: config, updater: updater}
}

func (a *Action) Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*protocol.Result, error) {
	if a.updater == nil {
		return nil, fmt.Errorf("update_status: %w", protocol.ErrCollaboratorMissing)
	}

	entity, ok := rc.ResolveEntity(a.config.Entity)
	if !ok {
		return nil, fmt.Errorf("update_status: %w", protocol.ErrNoTargetEntity)
	}

	target, err := template.RenderContext(a.config.Target, rc)
	if err != nil {
		return nil, err
	}

	err = a.updater.SetStatus(ctx, entity, target)
	if err != nil {
		return nil, fmt.Errorf("set status of %s: %w", entity, err)
	}

	logger.DebugContext(ctx, "Status updated", "entity", entity.String(), "status", target)

	return &protocol.Result{Output: map[string]any{"entity": entity, "status": target}}, nil
}
