// Package email implements the send_email step.
package email

import (
	"context"
	"fmt"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

type ActionFactory struct {
	mailer protocol.Mailer
}

func NewActionFactory(mailer protocol.Mailer) *ActionFactory {
	return &ActionFactory{mailer: mailer}
}

func (*ActionFactory) ID() models.StepType {
	return models.StepSendEmail
}

func (*ActionFactory) Name() string {
	return "Send email"
}

func (*ActionFactory) Description() string {
	return "Renders subject and body and sends them to the configured address or the contact email found in the run context."
}

//nolint:ireturn // protocol.ActionFactory contract
func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	decoded, err := models.DecodeStepConfig(models.StepSendEmail, config)
	if err != nil {
		return nil, err
	}

	cfg, ok := decoded.(models.EmailConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	return NewAction(cfg, f.mailer), nil
}

func (f *ActionFactory) GetSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:        "object",
		Title:       f.Name(),
		Description: f.Description(),
		Properties: map[string]*models.Property{
			"to":      {Type: "string", Description: "Recipient. Defaults to the email of the lead, customer or contact in the context"},
			"subject": models.NonEmpty("Email subject. Supports templating"),
			"body":    models.NonEmpty("Email body. Supports templating"),
		},
		Required: []string{"subject", "body"},
	}
}
