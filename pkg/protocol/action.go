// Package protocol defines the contracts between the run executor and the
// action implementations.
package protocol

import (
	"context"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
)

// Action performs exactly one side effect for one step of a run. The returned
// result is uniform across kinds: expected unavailability is a skipped
// success, a rejected send is a non-fatal failure result, and only unexpected
// errors are returned as Go errors (which terminate the run).
type Action interface {
	Execute(ctx context.Context, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error)
}

// ActionFactory builds an Action for one step config and exposes the JSON
// schema its config must satisfy.
type ActionFactory interface {
	Kind() models.ActionKind
	Schema() string
	Create(config map[string]any) (Action, error)
}
