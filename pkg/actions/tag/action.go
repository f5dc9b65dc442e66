// Package tag implements the ADD_TAG and REMOVE_TAG actions over the
// idempotent tag store.
package tag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
	"github.com/donorflow/donorflow/pkg/providers"
)

const tagSchema = `{
	"type": "object",
	"properties": {
		"tag_id": {"type": "string", "minLength": 1},
		"tag_name": {"type": "string"}
	},
	"required": ["tag_id"]
}`

type AddFactory struct {
	tags providers.TagStore
}

func NewAddFactory(tags providers.TagStore) *AddFactory {
	return &AddFactory{tags: tags}
}

func (f *AddFactory) Kind() models.ActionKind {
	return models.ActionAddTag
}

func (f *AddFactory) Schema() string {
	return tagSchema
}

func (f *AddFactory) Create(config map[string]any) (protocol.Action, error) {
	return newAction(config, f.tags, true)
}

type RemoveFactory struct {
	tags providers.TagStore
}

func NewRemoveFactory(tags providers.TagStore) *RemoveFactory {
	return &RemoveFactory{tags: tags}
}

func (f *RemoveFactory) Kind() models.ActionKind {
	return models.ActionRemoveTag
}

func (f *RemoveFactory) Schema() string {
	return tagSchema
}

func (f *RemoveFactory) Create(config map[string]any) (protocol.Action, error) {
	return newAction(config, f.tags, false)
}

type Action struct {
	config models.TagConfig
	tags   providers.TagStore
	assign bool
}

func newAction(config map[string]any, tags providers.TagStore, assign bool) (*Action, error) {
	var tagConfig models.TagConfig

	err := models.DecodeConfig(config, &tagConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid tag config: %w", err)
	}

	if tagConfig.TagID == "" {
		return nil, fmt.Errorf("tag config requires tag_id")
	}

	return &Action{config: tagConfig, tags: tags, assign: assign}, nil
}

func (a *Action) Execute(ctx context.Context, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error) {
	if runCtx.SubjectID == "" {
		return models.SkippedResult("no subject"), nil
	}

	var (
		err  error
		kind string
	)

	if a.assign {
		kind = "assign"
		err = a.tags.Assign(ctx, runCtx.SubjectID, a.config.TagID)
	} else {
		kind = "unassign"
		err = a.tags.Unassign(ctx, runCtx.SubjectID, a.config.TagID)
	}

	if err != nil {
		logger.WarnContext(ctx, "Tag store operation failed", "op", kind, "tag_id", a.config.TagID, "error", err)

		return models.ProviderFailure(err.Error()), nil
	}

	return models.ActionResult{OK: true, Output: map[string]any{"tag_id": a.config.TagID, "op": kind}}, nil
}
