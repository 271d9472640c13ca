// Package protocol defines the contracts between the step executor, the
// actions it dispatches to and the external collaborators those actions call.
package protocol

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/engageflow/pkg/models"
)

var (
	// ErrNoTargetEntity is returned when the run context holds no record an
	// action could act on.
	ErrNoTargetEntity = errors.New("no target entity in context")

	// ErrCollaboratorMissing is returned when an action runs without the
	// collaborator it delivers through.
	ErrCollaboratorMissing = errors.New("collaborator not configured")
)

// Action is a configured step ready to run against a context.
type Action interface {
	Execute(ctx context.Context, rc models.Context, logger *slog.Logger) (*Result, error)
}

// ActionFactory builds actions of one step type from a raw step config.
type ActionFactory interface {
	models.SchemaProvider

	ID() models.StepType
	Name() string
	Description() string
	Create(ctx context.Context, config map[string]any) (Action, error)
}

// Result is the outcome of a successful action. Skipped marks a no-op, such
// as adding a tag the entity already carries.
type Result struct {
	Output  map[string]any `json:"output,omitempty"`
	Skipped bool           `json:"skipped,omitempty"`
}
