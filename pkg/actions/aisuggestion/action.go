// Package aisuggestion implements the AI_SUGGESTION action. It is a
// deliberately inert placeholder: no generative provider is called, only an
// audit record is written for a human to review later.
package aisuggestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
	"github.com/donorflow/donorflow/pkg/providers"
)

type Factory struct {
	audit providers.AuditLog
}

func NewFactory(audit providers.AuditLog) *Factory {
	return &Factory{audit: audit}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionAISuggestion
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"properties": {
			"prompt": {"type": "string", "minLength": 1},
			"suggestion": {"type": "string"}
		},
		"required": ["prompt"]
	}`
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	var suggestionConfig models.SuggestionConfig

	err := models.DecodeConfig(config, &suggestionConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid suggestion config: %w", err)
	}

	return &Action{config: suggestionConfig, audit: f.audit}, nil
}

type Action struct {
	config models.SuggestionConfig
	audit  providers.AuditLog
}

func (a *Action) Execute(ctx context.Context, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error) {
	err := a.audit.Record(ctx, providers.AuditEntry{
		TenantID:   runCtx.TenantID,
		Action:     "ai_suggestion",
		EntityType: "execution",
		EntityID:   runCtx.ExecutionID,
		Details: map[string]any{
			"subject_id": runCtx.SubjectID,
			"prompt":     a.config.Prompt,
			"suggestion": a.config.Suggestion,
		},
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to record suggestion audit entry", "error", err)

		return models.ProviderFailure(err.Error()), nil
	}

	return models.Succeeded(), nil
}
