// Package models defines the core domain models for trigger-driven donor automations.
package models

import (
	"fmt"
	"time"
)

// TriggerKind is the closed set of business events that can start automation runs.
type TriggerKind string

const (
	TriggerNewDonation         TriggerKind = "NEW_DONATION"
	TriggerDonorCreated        TriggerKind = "DONOR_CREATED"
	TriggerCampaignGoalReached TriggerKind = "CAMPAIGN_GOAL_REACHED"
	TriggerNoDonationPeriod    TriggerKind = "NO_DONATION_PERIOD"
	TriggerNewSubscriber       TriggerKind = "NEW_SUBSCRIBER"
	TriggerTagAdded            TriggerKind = "TAG_ADDED"
	TriggerCampaignEnded       TriggerKind = "CAMPAIGN_ENDED"
	TriggerManual              TriggerKind = "MANUAL"
)

// IsValid reports whether the trigger kind is one of the known kinds.
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerNewDonation, TriggerDonorCreated, TriggerCampaignGoalReached,
		TriggerNoDonationPeriod, TriggerNewSubscriber, TriggerTagAdded,
		TriggerCampaignEnded, TriggerManual:
		return true
	default:
		return false
	}
}

// Automation is the stored, reusable description of a trigger plus ordered steps.
// It belongs to exactly one tenant and is never physically removed while past
// executions reference it; deactivation is the only form of removal.
type Automation struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"      validate:"required"`
	Name          string         `json:"name"           validate:"required,min=3"`
	TriggerKind   TriggerKind    `json:"trigger_kind"   validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`
	Active        bool           `json:"active"`
	Steps         []Step         `json:"steps"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Validate checks invariants the validator tags cannot express: a known
// trigger kind and contiguous, unique, zero-based step ordering.
func (a *Automation) Validate() error {
	if !a.TriggerKind.IsValid() {
		return fmt.Errorf("unknown trigger kind: %s", a.TriggerKind)
	}

	for i, step := range a.Steps {
		if step.Order != i {
			return fmt.Errorf("step order must be contiguous from 0, got %d at position %d", step.Order, i)
		}

		if !step.ActionKind.IsValid() {
			return fmt.Errorf("unknown action kind at step %d: %s", i, step.ActionKind)
		}

		if step.DelayMinutes < 0 {
			return fmt.Errorf("step %d has negative delay", i)
		}
	}

	return nil
}
