// Package file provides file-based persistence for automations and
// executions, intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/donorflow/donorflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	automationRepo *AutomationRepository
	executionRepo  *ExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		automationRepo: NewAutomationRepository(cleanRoot),
		executionRepo:  NewExecutionRepository(cleanRoot),
	}
}

// AutomationRepository returns the automation repository implementation.
func (fp *Persistence) AutomationRepository() persistence.AutomationRepository {
	return fp.automationRepo
}

// ExecutionRepository returns the execution repository implementation.
func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
