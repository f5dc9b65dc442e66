package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
)

// AutomationRepository stores one JSON document per automation under
// <root>/automations.
type AutomationRepository struct {
	root string
	mu   sync.RWMutex
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(root string) *AutomationRepository {
	return &AutomationRepository{root: root}
}

func (ar *AutomationRepository) dir() string {
	return path.Join(ar.root, "automations")
}

func (ar *AutomationRepository) filePath(id string) string {
	return path.Join(ar.dir(), id+".json")
}

// Save writes the automation document, creating the directory on first use.
func (ar *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.MkdirAll(ar.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create automations directory: %w", err)
	}

	data, err := json.MarshalIndent(automation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal automation: %w", err)
	}

	err = os.WriteFile(ar.filePath(automation.ID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write automation file: %w", err)
	}

	return nil
}

// GetByID loads one automation document.
func (ar *AutomationRepository) GetByID(_ context.Context, id string) (*models.Automation, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	return ar.read(id)
}

// ListByTenant returns all automations for a tenant, newest first.
func (ar *AutomationRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Automation, error) {
	automations, err := ar.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Automation, 0, len(automations))

	for _, automation := range automations {
		if automation.TenantID == tenantID {
			filtered = append(filtered, automation)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return filtered, nil
}

// ListActiveByTrigger returns the active automations matching a trigger kind.
func (ar *AutomationRepository) ListActiveByTrigger(ctx context.Context, tenantID string, kind models.TriggerKind) ([]*models.Automation, error) {
	automations, err := ar.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Automation, 0, len(automations))

	for _, automation := range automations {
		if automation.TenantID == tenantID && automation.TriggerKind == kind && automation.Active {
			filtered = append(filtered, automation)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	return filtered, nil
}

// Deactivate clears the active flag.
func (ar *AutomationRepository) Deactivate(ctx context.Context, id string) error {
	automation, err := ar.GetByID(ctx, id)
	if err != nil {
		return err
	}

	automation.Active = false
	automation.UpdatedAt = time.Now().UTC()

	return ar.Save(ctx, automation)
}

func (ar *AutomationRepository) read(id string) (*models.Automation, error) {
	data, err := os.ReadFile(ar.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrAutomationNotFound
		}

		return nil, fmt.Errorf("failed to read automation file: %w", err)
	}

	var automation models.Automation

	err = json.Unmarshal(data, &automation)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal automation %s: %w", id, err)
	}

	return &automation, nil
}

func (ar *AutomationRepository) all() ([]*models.Automation, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	entries, err := fs.Glob(os.DirFS(ar.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list automation files: %w", err)
	}

	automations := make([]*models.Automation, 0, len(entries))

	for _, entry := range entries {
		automation, err := ar.read(entry[:len(entry)-len(".json")])
		if err != nil {
			return nil, err
		}

		automations = append(automations, automation)
	}

	return automations, nil
}
