package models

// RunContext carries the per-run data actions need: who triggered the run,
// which subject it targets, and the trigger metadata captured at fire time.
type RunContext struct {
	ExecutionID  string         `json:"execution_id"`
	AutomationID string         `json:"automation_id"`
	TenantID     string         `json:"tenant_id"`
	TenantSlug   string         `json:"tenant_slug,omitempty"`
	SubjectID    string         `json:"subject_id,omitempty"`
	TriggerKind  TriggerKind    `json:"trigger_kind"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
}

// ActionResult is the uniform outcome of one dispatched action. Skipped marks
// expected unavailability (missing address, withdrawn consent): a successful
// no-op, not an error. OK=false with a Reason records a provider failure that
// does not abort the run. Fatal failures are returned as Go errors instead.
type ActionResult struct {
	OK      bool           `json:"ok"`
	Skipped bool           `json:"skipped,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
}

// Succeeded returns a plain success result.
func Succeeded() ActionResult {
	return ActionResult{OK: true}
}

// SkippedResult returns a successful no-op result with the given reason.
func SkippedResult(reason string) ActionResult {
	return ActionResult{OK: true, Skipped: true, Reason: reason}
}

// ProviderFailure returns a non-fatal failure result for a rejected send.
func ProviderFailure(reason string) ActionResult {
	return ActionResult{OK: false, Reason: reason}
}
