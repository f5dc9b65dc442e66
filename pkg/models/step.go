package models

// ActionKind is the closed set of side effects a step can perform.
type ActionKind string

const (
	ActionSendEmail    ActionKind = "SEND_EMAIL"
	ActionSendSMS      ActionKind = "SEND_SMS"
	ActionWait         ActionKind = "WAIT"
	ActionAddTag       ActionKind = "ADD_TAG"
	ActionRemoveTag    ActionKind = "REMOVE_TAG"
	ActionNotifyAdmin  ActionKind = "NOTIFY_ADMIN"
	ActionAISuggestion ActionKind = "AI_SUGGESTION"
	ActionCondition    ActionKind = "CONDITION"
)

// IsValid reports whether the action kind is one of the known kinds.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionSendEmail, ActionSendSMS, ActionWait, ActionAddTag,
		ActionRemoveTag, ActionNotifyAdmin, ActionAISuggestion, ActionCondition:
		return true
	default:
		return false
	}
}

// Step is one unit of work within an automation. DelayMinutes is applied
// before the step runs, relative to completion of the previous step.
type Step struct {
	Order        int            `json:"order"`
	ActionKind   ActionKind     `json:"action_kind"  validate:"required"`
	Config       map[string]any `json:"config,omitempty"`
	DelayMinutes int            `json:"delay_minutes" validate:"gte=0"`
}
