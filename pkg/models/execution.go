package models

import "time"

// ExecutionStatus represents the lifecycle state of a single automation run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ContextNextStepKey is the ContextData key recording which step a suspended
// execution resumes from.
const ContextNextStepKey = "next_step"

// Execution is one run of one automation against one subject. Executions are
// created when a trigger matches, mutated only by the executor, and retained
// forever as an audit trail.
type Execution struct {
	ID               string          `json:"id"`
	AutomationID     string          `json:"automation_id"`
	TenantID         string          `json:"tenant_id"`
	SubjectID        string          `json:"subject_id,omitempty"`
	Status           ExecutionStatus `json:"status"`
	CurrentStepIndex int             `json:"current_step_index"`
	ResumeAt         *time.Time      `json:"resume_at,omitempty"`
	ContextData      map[string]any  `json:"context_data,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// NextStep returns the resume cursor stored in ContextData, falling back to
// CurrentStepIndex when the bookkeeping entry is absent. JSON round-trips
// store numbers as float64, so both encodings are accepted.
func (e *Execution) NextStep() int {
	if e.ContextData == nil {
		return e.CurrentStepIndex
	}

	switch v := e.ContextData[ContextNextStepKey].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return e.CurrentStepIndex
	}
}
