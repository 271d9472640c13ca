package aireply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/template"
)

const defaultTimeout = 30 * time.Second

type Action struct {
	config    models.AIReplyConfig
	generator protocol.Generator
	notifier  protocol.Notifier
}

func NewAction(config models.AIReplyConfig, generator protocol.Generator, notifier protocol.Notifier) *Action {
	return &Action{config: config, generator: generator, notifier: notifier}
}

func (a *Action) Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*protocol.Result, error) {
	if a.generator == nil || a.notifier == nil {
		return nil, fmt.Errorf("ai_reply: %w", protocol.ErrCollaboratorMissing)
	}

	prompt, err := template.RenderContext(a.config.Prompt, rc)
	if err != nil {
		return nil, err
	}

	timeout := defaultTimeout
	if a.config.TimeoutSeconds > 0 {
		timeout = time.Duration(a.config.TimeoutSeconds) * time.Second
	}

	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := a.generator.Generate(genCtx, protocol.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		Context:     rc,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	entity, _ := rc.ResolveEntity("conversation")
	if entity.ID == "" {
		entity, _ = rc.ResolveEntity("")
	}

	err = a.notifier.Notify(ctx, protocol.Notification{
		Channel: a.config.Channel,
		Body:    reply,
		Entity:  entity,
	})
	if err != nil {
		return nil, fmt.Errorf("deliver reply: %w", err)
	}

	logger.DebugContext(ctx, "AI reply delivered", "entity", entity.String(), "length", len(reply))

	return &protocol.Result{Output: map[string]any{"reply": reply}}, nil
}
