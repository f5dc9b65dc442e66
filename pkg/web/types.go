// Package web provides the operator-facing HTTP API: automation management,
// execution history, and manual runs.
package web

import "github.com/donorflow/donorflow/pkg/models"

// CreateAutomationRequest represents the request body for creating a new automation.
type CreateAutomationRequest struct {
	TenantID      string         `json:"tenant_id"      validate:"required"`
	Name          string         `json:"name"           validate:"required,min=3"`
	TriggerKind   string         `json:"trigger_kind"   validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`
	Active        *bool          `json:"active,omitempty"`
	Steps         []StepRequest  `json:"steps"`
}

// UpdateAutomationRequest represents the request body for updating an
// automation. All fields are optional to support partial updates.
type UpdateAutomationRequest struct {
	Name          *string        `json:"name,omitempty"   validate:"omitempty,min=3"`
	TriggerKind   *string        `json:"trigger_kind,omitempty"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`
	Active        *bool          `json:"active,omitempty"`
	Steps         []StepRequest  `json:"steps,omitempty"`
}

// StepRequest is one step in a create/update request. Order is implied by
// position.
type StepRequest struct {
	ActionKind   string         `json:"action_kind"   validate:"required"`
	Config       map[string]any `json:"config,omitempty"`
	DelayMinutes int            `json:"delay_minutes" validate:"gte=0"`
}

// FireRequest is the body of a manual run request. Context carries the
// subject id and any correlating ids.
type FireRequest struct {
	Context map[string]any `json:"context,omitempty"`
}

// FireResponse returns the id of the launched execution.
type FireResponse struct {
	ExecutionID string `json:"execution_id"`
}

func (r StepRequest) toModel(order int) models.Step {
	return models.Step{
		Order:        order,
		ActionKind:   models.ActionKind(r.ActionKind),
		Config:       r.Config,
		DelayMinutes: r.DelayMinutes,
	}
}
