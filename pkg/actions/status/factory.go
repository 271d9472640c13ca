// Package status implements the update_status step.
package status

import (
	"context"
	"fmt"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

type ActionFactory struct {
	updater protocol.EntityUpdater
}

func NewActionFactory(updater protocol.EntityUpdater) *ActionFactory {
	return &ActionFactory{updater: updater}
}

func (*ActionFactory) ID() models.StepType {
	return models.StepUpdateStatus
}

func (*ActionFactory) Name() string {
	return "Update status"
}

func (*ActionFactory) Description() string {
	return "Sets the status of the target record. Allowed values are enforced by the service owning the record."
}

//nolint:ireturn // protocol.ActionFactory contract
func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	decoded, err := models.DecodeStepConfig(models.StepUpdateStatus, config)
	if err != nil {
		return nil, err
	}

	cfg, ok := decoded.(models.StatusConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	return NewAction(cfg, f.updater), nil
}

func (f *ActionFactory) GetSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:        "object",
		Title:       f.Name(),
		Description: f.Description(),
		Properties: map[string]*models.Property{
			"target": models.NonEmpty("New status value, e.g. qualified"),
			"entity": {Type: "string", Description: "Record kind to update; defaults to the first record in the context"},
		},
		Required: []string{"target"},
	}
}
