package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/template"
)

type Action struct {
	stepType models.StepType
	config   models.MessageConfig
	notifier protocol.Notifier
}

func NewAction(stepType models.StepType, config models.MessageConfig, notifier protocol.Notifier) *Action {
	return &Action{stepType: stepType, config: config, notifier: notifier}
}

func (a *Action) Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*protocol.Result, error) {
	if a.notifier == nil {
		return nil, fmt.Errorf("%s: %w", a.stepType, protocol.ErrCollaboratorMissing)
	}

	title, err := template.RenderContext(a.config.Title, rc)
	if err != nil {
		return nil, err
	}

	body, err := template.RenderContext(a.config.Content, rc)
	if err != nil {
		return nil, err
	}

	// Notifications are not required to target a record; the entity is
	// attached when the context has one.
	entity, _ := rc.ResolveEntity("")

	notification := protocol.Notification{
		Channel: a.config.Channel,
		Title:   title,
		Body:    body,
		Entity:  entity,
	}

	err = a.notifier.Notify(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	logger.DebugContext(ctx, "Notification delivered", "action_type", a.stepType, "entity", entity.String())

	return &protocol.Result{Output: map[string]any{"title": title, "body": body}}, nil
}
