package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/engageflow/pkg/eventbus"
	"github.com/dukex/engageflow/pkg/events"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence"
)

// TriggerMatcher fans domain events out to every active workflow whose
// trigger type matches the event type.
type TriggerMatcher struct {
	workflows persistence.WorkflowRepository
	engine    *Engine
	logger    *slog.Logger
}

func NewTriggerMatcher(workflows persistence.WorkflowRepository, engine *Engine, logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		workflows: workflows,
		engine:    engine,
		logger:    logger.With("module", "trigger_matcher"),
	}
}

// HandleEvent starts one run per matching active workflow and returns the
// runs that were started. A workflow that fails to start does not prevent
// the others from running.
func (m *TriggerMatcher) HandleEvent(ctx context.Context, event *events.DomainEvent) ([]*models.ExecutionRun, error) {
	logger := m.logger.With("event_id", event.ID, "event_type", event.Type)

	triggerType := models.TriggerType(event.Type)
	if !triggerType.IsValid() {
		logger.WarnContext(ctx, "Ignoring event with unknown type")

		return nil, nil
	}

	workflows, err := m.workflows.GetActiveByTriggerType(ctx, triggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to find workflows for %s: %w", triggerType, err)
	}

	if len(workflows) == 0 {
		logger.InfoContext(ctx, "No active workflow matches event")

		return nil, nil
	}

	runs := make([]*models.ExecutionRun, 0, len(workflows))

	for _, workflow := range workflows {
		rc := models.NewContext(event.Type, event.Payload)
		rc[models.ContextEventKey] = map[string]any{
			"id":          event.ID,
			"type":        event.Type,
			"occurred_at": event.OccurredAt,
		}

		run, err := m.engine.Start(ctx, workflow, event.Type, rc)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to start workflow", "workflow_id", workflow.ID, "error", err)

			continue
		}

		logger.InfoContext(ctx, "Workflow triggered", "workflow_id", workflow.ID, "run_id", run.ID)
		runs = append(runs, run)
	}

	return runs, nil
}

// ExecuteNow runs a workflow immediately with the given payload, whether it
// is active or not.
func (m *TriggerMatcher) ExecuteNow(ctx context.Context, workflowID string, payload map[string]any) (*models.ExecutionRun, error) {
	workflow, err := m.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	rc := models.NewContext(models.TriggerEventManual, payload)

	return m.engine.Start(ctx, workflow, models.TriggerEventManual, rc)
}

// RegisterHandlers subscribes the matcher to domain events and manual
// execution requests on the bus.
func (m *TriggerMatcher) RegisterHandlers(bus eventbus.EventSubscriber) error {
	err := bus.Handle(events.DomainEventReceived, func(ctx context.Context, event any) error {
		domainEvent, ok := event.(*events.DomainEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		_, err := m.HandleEvent(ctx, domainEvent)

		return err
	})
	if err != nil {
		return err
	}

	return bus.Handle(events.WorkflowExecuteRequestedEvent, func(ctx context.Context, event any) error {
		request, ok := event.(*events.WorkflowExecuteRequested)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		_, err := m.ExecuteNow(ctx, request.WorkflowID, request.Payload)
		if persistence.IsWorkflowNotFound(err) {
			m.logger.WarnContext(ctx, "Execution requested for unknown workflow", "workflow_id", request.WorkflowID)

			return nil
		}

		return err
	})
}
