// Package aireply implements the ai_reply step: a reply is generated from a
// prompt and delivered through the notifier.
package aireply

import (
	"context"
	"fmt"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

type ActionFactory struct {
	generator protocol.Generator
	notifier  protocol.Notifier
}

func NewActionFactory(generator protocol.Generator, notifier protocol.Notifier) *ActionFactory {
	return &ActionFactory{generator: generator, notifier: notifier}
}

func (*ActionFactory) ID() models.StepType {
	return models.StepAIReply
}

func (*ActionFactory) Name() string {
	return "AI reply"
}

func (*ActionFactory) Description() string {
	return "Generates a reply with the configured AI provider and sends it to the conversation"
}

//nolint:ireturn // protocol.ActionFactory contract
func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	decoded, err := models.DecodeStepConfig(models.StepAIReply, config)
	if err != nil {
		return nil, err
	}

	cfg, ok := decoded.(models.AIReplyConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config %T", models.ErrInvalidStepConfig, decoded)
	}

	return NewAction(cfg, f.generator, f.notifier), nil
}

func (f *ActionFactory) GetSchema() *models.JSONSchema {
	minTokens := 1.0
	minTemperature := 0.0
	maxTemperature := 2.0
	minTimeout := 1.0

	return &models.JSONSchema{
		Type:        "object",
		Title:       f.Name(),
		Description: f.Description(),
		Properties: map[string]*models.Property{
			"prompt":         models.NonEmpty("Prompt template sent to the AI provider"),
			"maxTokens":      {Type: []string{"integer", "string"}, Description: "Maximum tokens to generate", Minimum: &minTokens},
			"temperature":    {Type: []string{"number", "string"}, Description: "Sampling temperature", Minimum: &minTemperature, Maximum: &maxTemperature},
			"channel":        {Type: "string", Description: "Channel the reply is delivered on"},
			"timeoutSeconds": {Type: []string{"integer", "string"}, Description: "Generation timeout", Minimum: &minTimeout},
		},
		Required: []string{"prompt"},
	}
}
