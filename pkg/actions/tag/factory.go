// Package tag implements the add_tag step.
package tag

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
	return models.StepAddTag
}

func (*ActionFactory) Name() string {
	return "Add tag"
}

func (*ActionFactory) Description() string {
	return "Attaches a tag to the target record. Adding a tag the record already has is a no-op."
}

//nolint:ireturn // protocol.ActionFactory contract
func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	decoded, err := models.DecodeStepConfig(models.StepAddTag, config)
	if err != nil {
		return nil, err
	}

	cfg, ok := decoded.(models.TagConfig)
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
			"tag":    models.NonEmpty("Tag name"),
			"entity": {Type: "string", Description: "Record kind to tag; defaults to the first record in the context"},
		},
		Required: []string{"tag"},
	}
}
