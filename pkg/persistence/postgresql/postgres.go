// Package postgresql provides PostgreSQL persistence for automations and executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	automationRepo *AutomationRepository
	executionRepo  *ExecutionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		automationRepo: NewAutomationRepository(database, logger),
		executionRepo:  NewExecutionRepository(database, logger),
	}, nil
}

// AutomationRepository returns the automation repository.
func (p *Persistence) AutomationRepository() persistence.AutomationRepository {
	return p.automationRepo
}

// ExecutionRepository returns the execution repository.
func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
