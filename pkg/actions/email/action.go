package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/template"
)

var ErrNoRecipient = errors.New("no email recipient")

type Action struct {
	config models.EmailConfig
	mailer protocol.Mailer
}

func NewAction(config models.EmailConfig, mailer protocol.Mailer) *Action {
	return &Action{config: config, mailer: mailer}
}

func (a *Action) Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*protocol.Result, error) {
	if a.mailer == nil {
		return nil, fmt.Errorf("send_email: %w", protocol.ErrCollaboratorMissing)
	}

	to, err := template.RenderContext(a.config.To, rc)
	if err != nil {
		return nil, err
	}

	to = strings.TrimSpace(to)
	if to == "" {
		to = rc.ContactEmail()
	}

	if to == "" {
		return nil, ErrNoRecipient
	}

	subject, err := template.RenderContext(a.config.Subject, rc)
	if err != nil {
		return nil, err
	}

	body, err := template.RenderContext(a.config.Body, rc)
	if err != nil {
		return nil, err
	}

	err = a.mailer.Send(ctx, protocol.Email{To: to, Subject: subject, Body: body})
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	logger.DebugContext(ctx, "Email sent", "action_type", models.StepSendEmail, "to", to)

	return &protocol.Result{Output: map[string]any{"to": to, "subject": subject}}, nil
}
