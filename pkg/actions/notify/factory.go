// Package notify implements the send_message and send_notification steps.
package notify

import (
	"context"
	"fmt"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

// ActionFactory builds notification actions for one of the two message step
// types.
type ActionFactory struct {
	stepType models.StepType
	notifier protocol.Notifier
}

// NewActionFactory creates a factory for send_message or send_notification.
func NewActionFactory(stepType models.StepType, notifier protocol.Notifier) *ActionFactory {
	return &ActionFactory{stepType: stepType, notifier: notifier}
}

func (f *ActionFactory) ID() models.StepType {
	return f.stepType
}

func (f *ActionFactory) Name() string {
	if f.stepType == models.StepSendMessage {
		return "Send message"
	}

	return "Send notification"
}

func (f *ActionFactory) Description() string {
	return "Renders a title and content against the run context and delivers them through the notification service."
}

//nolint:ireturn // protocol.ActionFactory contract
func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	decoded, err := models.DecodeStepConfig(f.stepType, config)
	if err != nil {
		return nil, err
	}

	cfg, ok := decoded.(models.MessageConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	return NewAction(f.stepType, cfg, f.notifier), nil
}

func (f *ActionFactory) GetSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:        "object",
		Title:       f.Name(),
		Description: f.Description(),
		Properties: map[string]*models.Property{
			"title":   {Type: "string", Description: "Notification title. Supports templating, e.g. Hot lead {{ .lead.name }}"},
			"content": models.NonEmpty("Message body. Supports templating against the run context"),
			"channel": {Type: "string", Description: "Delivery channel hint passed to the notification service"},
		},
		Required: []string{"content"},
	}
}
