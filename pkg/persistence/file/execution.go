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

// ExecutionRepository stores one JSON document per execution under
// <root>/executions. A process-wide mutex stands in for the conditional
// update the PostgreSQL backend uses to claim due executions.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return path.Join(er.root, "executions")
}

func (er *ExecutionRepository) filePath(id string) string {
	return path.Join(er.dir(), id+".json")
}

// Create writes a new execution document.
func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.write(execution)
}

// Update overwrites an existing execution document.
func (er *ExecutionRepository) Update(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := os.Stat(er.filePath(execution.ID)); os.IsNotExist(err) {
		return persistence.ErrExecutionNotFound
	}

	return er.write(execution)
}

// GetByID loads one execution document.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.read(id)
}

// ListByAutomation returns all executions of one automation, newest first.
func (er *ExecutionRepository) ListByAutomation(_ context.Context, automationID string) ([]*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	executions, err := er.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Execution, 0, len(executions))

	for _, execution := range executions {
		if execution.AutomationID == automationID {
			filtered = append(filtered, execution)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return filtered, nil
}

// ListDue returns all waiting executions whose resume time has elapsed.
func (er *ExecutionRepository) ListDue(_ context.Context, now time.Time) ([]*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	executions, err := er.all()
	if err != nil {
		return nil, err
	}

	due := make([]*models.Execution, 0)

	for _, execution := range executions {
		if execution.Status == models.ExecutionStatusWaiting &&
			execution.ResumeAt != nil && !execution.ResumeAt.After(now) {
			due = append(due, execution)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	return due, nil
}

// Claim transitions a due waiting execution to running. The mutex makes the
// read-check-write sequence atomic within the process.
func (er *ExecutionRepository) Claim(_ context.Context, id string, now time.Time) (bool, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.read(id)
	if err != nil {
		return false, err
	}

	if execution.Status != models.ExecutionStatusWaiting ||
		execution.ResumeAt == nil || execution.ResumeAt.After(now) {
		return false, nil
	}

	execution.Status = models.ExecutionStatusRunning
	execution.ResumeAt = nil

	err = er.write(execution)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (er *ExecutionRepository) write(execution *models.Execution) error {
	err := os.MkdirAll(er.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	err = os.WriteFile(er.filePath(execution.ID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write execution file: %w", err)
	}

	return nil
}

func (er *ExecutionRepository) read(id string) (*models.Execution, error) {
	data, err := os.ReadFile(er.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to read execution file: %w", err)
	}

	var execution models.Execution

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) all() ([]*models.Execution, error) {
	entries, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0, len(entries))

	for _, entry := range entries {
		execution, err := er.read(entry[:len(entry)-len(".json")])
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
