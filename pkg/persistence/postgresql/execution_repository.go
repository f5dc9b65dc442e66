package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, automation_id, tenant_id, subject_id, status, current_step_index, resume_at, context_data, error_message, created_at, completed_at`

// Create inserts a new execution row.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	return er.upsert(ctx, execution, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
}

// Update overwrites the mutable fields of an existing execution.
func (er *ExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	contextJSON, err := json.Marshal(execution.ContextData)
	if err != nil {
		return fmt.Errorf("failed to marshal context data: %w", err)
	}

	query := `
		UPDATE executions
		SET status = $2, current_step_index = $3, resume_at = $4,
			context_data = $5, error_message = $6, completed_at = $7
		WHERE id = $1
	`

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.CurrentStepIndex,
		execution.ResumeAt,
		contextJSON,
		nullableString(execution.ErrorMessage),
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

// GetByID returns an execution by its ID.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ListByAutomation returns all executions of one automation, newest first.
func (er *ExecutionRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE automation_id = $1 ORDER BY created_at DESC`

	return er.queryExecutions(ctx, query, automationID)
}

// ListDue returns all waiting executions whose resume time has elapsed.
func (er *ExecutionRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'waiting' AND resume_at <= $1
		ORDER BY resume_at
	`

	return er.queryExecutions(ctx, query, now)
}

// Claim conditionally transitions waiting -> running so only one sweep caller
// can win a due execution.
func (er *ExecutionRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE executions
		SET status = 'running', resume_at = NULL
		WHERE id = $1 AND status = 'waiting' AND resume_at <= $2
	`

	result, err := er.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

func (er *ExecutionRepository) upsert(ctx context.Context, execution *models.Execution, query string) error {
	contextJSON, err := json.Marshal(execution.ContextData)
	if err != nil {
		return fmt.Errorf("failed to marshal context data: %w", err)
	}

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.AutomationID,
		execution.TenantID,
		nullableString(execution.SubjectID),
		execution.Status,
		execution.CurrentStepIndex,
		execution.ResumeAt,
		contextJSON,
		nullableString(execution.ErrorMessage),
		execution.CreatedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func (er *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := er.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (er *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution    models.Execution
		subjectID    sql.NullString
		errorMessage sql.NullString
		contextJSON  []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.AutomationID,
		&execution.TenantID,
		&subjectID,
		&execution.Status,
		&execution.CurrentStepIndex,
		&execution.ResumeAt,
		&contextJSON,
		&errorMessage,
		&execution.CreatedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.SubjectID = subjectID.String
	execution.ErrorMessage = errorMessage.String

	if contextJSON != nil {
		err := json.Unmarshal(contextJSON, &execution.ContextData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal context data: %w", err)
		}
	}

	return &execution, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
