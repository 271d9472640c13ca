package tag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

type Action struct {
	config  models.TagConfig
	updater protocol.EntityUpdater
}

func NewAction(config models.TagConfig, updater protocol.EntityUpdater) *Action {
	return &Action{config: config, updater: updater}
}

func (a *Action) Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*protocol.Result, error) {
	if a.updater == nil {
		return nil, fmt.Errorf("add_tag: %w", protocol.ErrCollaboratorMissing)
	}

	entity, ok := rc.ResolveEntity(a.config.Entity)
	if !ok {
		return nil, fmt.Errorf("add_tag: %w", protocol.ErrNoTargetEntity)
	}

	if hasTag(rc.Tags(entity), a.config.Tag) {
		logger.DebugContext(ctx, "Tag already present", "entity", entity.String(), "tag", a.config.Tag)

		return &protocol.Result{Skipped: true, Output: map[string]any{"entity": entity, "tag": a.config.Tag}}, nil
	}

	err := a.updater.AddTag(ctx, entity, a.config.Tag)
	if err != nil {
		return nil, fmt.Errorf("add tag to %s: %w", entity, err)
	}

	rc.AddTag(entity, a.config.Tag)

	return &protocol.Result{Output: map[string]any{"entity": entity, "tag": a.config.Tag}}, nil
}

func hasTag(tags []string, tag string) bool {
	for _, existing := range tags {
		if strings.EqualFold(strings.TrimSpace(existing), tag) {
			return true
		}
	}

	return false
}
