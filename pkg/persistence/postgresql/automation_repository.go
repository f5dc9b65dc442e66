package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
)

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

const automationColumns = `id, tenant_id, name, trigger_kind, trigger_config, active, steps, created_at, updated_at`

// Save upserts an automation.
func (ar *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	triggerConfigJSON, err := json.Marshal(automation.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	stepsJSON, err := json.Marshal(automation.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO automations (` + automationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			trigger_kind = EXCLUDED.trigger_kind,
			trigger_config = EXCLUDED.trigger_config,
			active = EXCLUDED.active,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at
	`

	_, err = ar.db.ExecContext(ctx, query,
		automation.ID,
		automation.TenantID,
		automation.Name,
		automation.TriggerKind,
		triggerConfigJSON,
		automation.Active,
		stepsJSON,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}

	return nil
}

// GetByID returns an automation by its ID.
func (ar *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = $1`

	automation, err := ar.scanAutomation(ar.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAutomationNotFound
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	return automation, nil
}

// ListByTenant returns all automations for a tenant, newest first.
func (ar *AutomationRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE tenant_id = $1 ORDER BY created_at DESC`

	return ar.queryAutomations(ctx, query, tenantID)
}

// ListActiveByTrigger returns the active automations a trigger event should be
// matched against.
func (ar *AutomationRepository) ListActiveByTrigger(ctx context.Context, tenantID string, kind models.TriggerKind) ([]*models.Automation, error) {
	query := `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE tenant_id = $1 AND trigger_kind = $2 AND active
		ORDER BY created_at
	`

	return ar.queryAutomations(ctx, query, tenantID, kind)
}

// Deactivate soft-removes an automation by clearing its active flag.
func (ar *AutomationRepository) Deactivate(ctx context.Context, id string) error {
	result, err := ar.db.ExecContext(ctx, `UPDATE automations SET active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate automation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrAutomationNotFound
	}

	return nil
}

func (ar *AutomationRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := ar.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			ar.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var automations []*models.Automation

	for rows.Next() {
		automation, err := ar.scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (ar *AutomationRepository) scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation        models.Automation
		triggerConfigJSON []byte
		stepsJSON         []byte
	)

	err := row.Scan(
		&automation.ID,
		&automation.TenantID,
		&automation.Name,
		&automation.TriggerKind,
		&triggerConfigJSON,
		&automation.Active,
		&stepsJSON,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggerConfigJSON != nil {
		err := json.Unmarshal(triggerConfigJSON, &automation.TriggerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	err = json.Unmarshal(stepsJSON, &automation.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return &automation, nil
}
