// Package registry maps action kinds to their factories and validates step
// configs against each action's JSON schema.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.ActionKind]protocol.ActionFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[models.ActionKind]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.factories[factory.Kind()] = factory
}

// CreateAction validates the config against the factory's schema and builds
// the action.
func (r *Registry) CreateAction(kind models.ActionKind, config map[string]any) (protocol.Action, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("action kind '%s' not registered", kind)
	}

	err := r.validate(factory, config)
	if err != nil {
		return nil, err
	}

	return factory.Create(config)
}

// ValidateStepConfig checks one step config against its action schema without
// building the action. The API uses this to reject broken definitions at save
// time.
func (r *Registry) ValidateStepConfig(kind models.ActionKind, config map[string]any) error {
	factory, ok := r.factories[kind]
	if !ok {
		return fmt.Errorf("action kind '%s' not registered", kind)
	}

	return r.validate(factory, config)
}

func (r *Registry) validate(factory protocol.ActionFactory, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(factory.Schema()),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for %s: %w", factory.Kind(), err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid config for %s: %s", factory.Kind(), result.Errors()[0].String())
	}

	return nil
}
