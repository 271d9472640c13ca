package protocol

import (
	"context"

	"github.com/dukex/engageflow/pkg/models"
)

type Notification struct {
	Channel string           `json:"channel,omitempty"`
	Title   string           `json:"title,omitempty"`
	Body    string           `json:"body"`
	Entity  models.EntityRef `json:"entity"`
}

// Notifier delivers in-app notifications and channel messages.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// Assigner sets the owner of a CRM record.
type Assigner interface {
	Assign(ctx context.Context, entity models.EntityRef, assigneeID string) error
}

// EntityUpdater mutates fields of a CRM record owned by another service.
// Status values are validated by the owning service.
type EntityUpdater interface {
	SetStatus(ctx context.Context, entity models.EntityRef, status string) error
	AddTag(ctx context.Context, entity models.EntityRef, tag string) error
}

type GenerateRequest struct {
	Prompt      string         `json:"prompt"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	Context     models.Context `json:"context,omitempty"`
}

// Generator produces AI text for ai_reply steps.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Collaborators groups the external services actions depend on.
type Collaborators struct {
	Notifier      Notifier
	Mailer        Mailer
	Assigner      Assigner
	EntityUpdater EntityUpdater
	Generator     Generator
}
