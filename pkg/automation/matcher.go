// Package automation implements the trigger-matched, delay-aware run engine.
package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
)

// TriggerMatcher filters a tenant's active automations down to those whose
// trigger kind and trigger config match an incoming event.
type TriggerMatcher struct {
	automations persistence.AutomationRepository
	logger      *slog.Logger
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(automations persistence.AutomationRepository, logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		automations: automations,
		logger:      logger.With("module", "trigger_matcher"),
	}
}

// correlationKeys are the trigger config keys the matcher understands. Any
// other key is ignored.
var correlationKeys = []string{"campaign_id", "tag_id", "tag_name"}

// Match returns the active automations of the tenant that the event starts.
// Matching is deliberately permissive: an absent trigger config matches
// everything, unrecognized config keys are ignored, and an empty config value
// is treated as an incomplete condition that also matches everything. Only a
// fully specified correlating id restricts the match.
func (tm *TriggerMatcher) Match(ctx context.Context, tenantID string, kind models.TriggerKind, triggerContext map[string]any) ([]*models.Automation, error) {
	candidates, err := tm.automations.ListActiveByTrigger(ctx, tenantID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load automations for tenant %s: %w", tenantID, err)
	}

	matched := make([]*models.Automation, 0, len(candidates))

	for _, candidate := range candidates {
		if tm.matchesConfig(candidate.TriggerConfig, triggerContext) {
			matched = append(matched, candidate)
		}
	}

	tm.logger.DebugContext(ctx, "Completed trigger matching",
		"tenant_id", tenantID,
		"trigger_kind", kind,
		"candidates", len(candidates),
		"matched", len(matched))

	return matched, nil
}

func (tm *TriggerMatcher) matchesConfig(config, triggerContext map[string]any) bool {
	if len(config) == 0 {
		return true
	}

	for _, key := range correlationKeys {
		required, exists := config[key]
		if !exists {
			continue
		}

		requiredStr := fmt.Sprintf("%v", required)
		if requiredStr == "" {
			// Incomplete condition, fail open.
			continue
		}

		actual, exists := triggerContext[key]
		if !exists {
			return false
		}

		if fmt.Sprintf("%v", actual) != requiredStr {
			return false
		}
	}

	return true
}
