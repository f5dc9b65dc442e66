package models

import "encoding/json"

// Typed views over the opaque step config maps. The persisted form stays
// schema-less; each action parses its config once at the boundary.

type EmailConfig struct {
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	FromName string `json:"from_name,omitempty"`
	FromAddr string `json:"from_address,omitempty"`
}

type SMSConfig struct {
	Body     string `json:"body"`
	SenderID string `json:"sender_id,omitempty"`
}

type TagConfig struct {
	TagID   string `json:"tag_id"`
	TagName string `json:"tag_name,omitempty"`
}

type NotifyAdminConfig struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SuggestionConfig holds the prompt text recorded for later human review.
// No generative provider is ever called.
type SuggestionConfig struct {
	Prompt     string `json:"prompt"`
	Suggestion string `json:"suggestion,omitempty"`
}

// DecodeConfig parses an opaque config map into a typed config struct via a
// JSON round-trip.
func DecodeConfig(config map[string]any, out any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}
