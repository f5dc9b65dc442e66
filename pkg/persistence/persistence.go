// Package persistence provides the data storage abstraction for automations
// and their executions.
package persistence

import (
	"context"
	"time"

	"github.com/donorflow/donorflow/pkg/models"
)

// AutomationRepository stores automation definitions. Definitions are soft
// deactivated, never deleted, so past executions can always resolve them.
type AutomationRepository interface {
	Save(ctx context.Context, automation *models.Automation) error
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Automation, error)
	ListActiveByTrigger(ctx context.Context, tenantID string, kind models.TriggerKind) ([]*models.Automation, error)
	Deactivate(ctx context.Context, id string) error
}

// ExecutionRepository stores execution state. All mutations are point updates
// keyed by execution ID.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Update(ctx context.Context, execution *models.Execution) error
	ListByAutomation(ctx context.Context, automationID string) ([]*models.Execution, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Execution, error)

	// Claim atomically transitions a waiting execution to running, provided
	// its resume time has elapsed. Exactly one concurrent caller wins; the
	// others observe claimed=false. This closes the double-resume race
	// between overlapping sweeps.
	Claim(ctx context.Context, id string, now time.Time) (claimed bool, err error)
}

// Persistence aggregates the repositories behind one backend.
type Persistence interface {
	AutomationRepository() AutomationRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
