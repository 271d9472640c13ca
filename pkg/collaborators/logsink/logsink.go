// Package logsink provides collaborators that only log what they would do.
// They back the binaries when no CRM services are wired in.
package logsink

import (
	"context"
	"log/slog"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger.With("module", "logsink")}
}

// Collaborators returns the sink as every collaborator.
func (s *Sink) Collaborators() protocol.Collaborators {
	return protocol.Collaborators{
		Notifier:      s,
		Mailer:        s,
		Assigner:      s,
		EntityUpdater: s,
		Generator:     s,
	}
}

func (s *Sink) Notify(ctx context.Context, notification protocol.Notification) error {
	s.logger.InfoContext(ctx, "Notification",
		"channel", notification.Channel,
		"title", notification.Title,
		"body", notification.Body,
		"entity", notification.Entity.String(),
	)

	return nil
}

func (s *Sink) Send(ctx context.Context, email protocol.Email) error {
	s.logger.InfoContext(ctx, "Email", "to", email.To, "subject", email.Subject)

	return nil
}

func (s *Sink) Assign(ctx context.Context, entity models.EntityRef, assigneeID string) error {
	s.logger.InfoContext(ctx, "Assign", "entity", entity.String(), "assignee_id", assigneeID)

	return nil
}

func (s *Sink) SetStatus(ctx context.Context, entity models.EntityRef, status string) error {
	s.logger.InfoContext(ctx, "Set status", "entity", entity.String(), "status", status)

	return nil
}

func (s *Sink) AddTag(ctx context.Context, entity models.EntityRef, tag string) error {
	s.logger.InfoContext(ctx, "Add tag", "entity", entity.String(), "tag", tag)

	return nil
}

// Generate echoes the rendered prompt back as the reply.
func (s *Sink) Generate(ctx context.Context, req protocol.GenerateRequest) (string, error) {
	s.logger.InfoContext(ctx, "Generate", "prompt", req.Prompt, "max_tokens", req.MaxTokens)

	return req.Prompt, nil
}
