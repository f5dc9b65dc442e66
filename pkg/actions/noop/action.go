// Package noop implements the actions with no side effect of their own.
// WAIT's effect is produced entirely by the executor's delay policy.
// CONDITION has no evaluation logic; it is kept inert on purpose rather than
// guessing an evaluation rule.
package noop

import (
	"context"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
)

type Factory struct {
	kind models.ActionKind
}

func NewWaitFactory() *Factory {
	return &Factory{kind: models.ActionWait}
}

func NewConditionFactory() *Factory {
	return &Factory{kind: models.ActionCondition}
}

func (f *Factory) Kind() models.ActionKind {
	return f.kind
}

func (f *Factory) Schema() string {
	return `{"type": "object"}`
}

func (f *Factory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

type Action struct{}

func (a *Action) Execute(_ context.Context, _ models.RunContext, _ *slog.Logger) (models.ActionResult, error) {
	return models.Succeeded(), nil
}
