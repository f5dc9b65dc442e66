// Package sendemail implements the consent-gated email action.
package sendemail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
	"github.com/donorflow/donorflow/pkg/providers"
)

type Factory struct {
	email              providers.EmailProvider
	donors             providers.DonorDirectory
	unsubscribeBaseURL string
}

// NewFactory creates the SEND_EMAIL factory. unsubscribeBaseURL is the public
// CRM base used to derive per-donor unsubscribe links.
func NewFactory(email providers.EmailProvider, donors providers.DonorDirectory, unsubscribeBaseURL string) *Factory {
	return &Factory{email: email, donors: donors, unsubscribeBaseURL: unsubscribeBaseURL}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionSendEmail
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"properties": {
			"subject": {"type": "string", "minLength": 1},
			"html": {"type": "string", "minLength": 1},
			"from_name": {"type": "string"},
			"from_address": {"type": "string"}
		},
		"required": ["subject", "html"]
	}`
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	var emailConfig models.EmailConfig

	err := models.DecodeConfig(config, &emailConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	return &Action{
		config:             emailConfig,
		email:              f.email,
		donors:             f.donors,
		unsubscribeBaseURL: f.unsubscribeBaseURL,
	}, nil
}

type Action struct {
	config             models.EmailConfig
	email              providers.EmailProvider
	donors             providers.DonorDirectory
	unsubscribeBaseURL string
}

func (a *Action) Execute(ctx context.Context, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error) {
	logger = logger.With("action_kind", "SEND_EMAIL")

	if runCtx.SubjectID == "" {
		logger.InfoContext(ctx, "Run has no subject, skipping email")

		return models.SkippedResult("no subject"), nil
	}

	donor, err := a.donors.GetDonor(ctx, runCtx.TenantID, runCtx.SubjectID)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("failed to resolve donor %s: %w", runCtx.SubjectID, err)
	}

	if donor == nil || donor.Email == "" {
		logger.InfoContext(ctx, "Donor has no email address, skipping")

		return models.SkippedResult("no email address"), nil
	}

	if !donor.EmailConsent {
		logger.InfoContext(ctx, "Donor has withdrawn email consent, skipping")

		return models.SkippedResult("no email consent"), nil
	}

	msg := providers.EmailMessage{
		To:             donor.Email,
		Subject:        a.config.Subject,
		HTML:           a.config.HTML,
		FromAddress:    a.config.FromAddr,
		FromName:       a.config.FromName,
		UnsubscribeURL: UnsubscribeURL(a.unsubscribeBaseURL, runCtx.TenantSlug, runCtx.SubjectID),
	}

	err = a.email.Send(ctx, msg)
	if err != nil {
		logger.WarnContext(ctx, "Email provider rejected send", "error", err)

		return models.ProviderFailure(err.Error()), nil
	}

	return models.ActionResult{OK: true, Output: map[string]any{"to": donor.Email}}, nil
}

// UnsubscribeURL derives the unsubscribe link deterministically from the
// tenant slug and subject id.
func UnsubscribeURL(baseURL, tenantSlug, subjectID string) string {
	return fmt.Sprintf("%s/unsubscribe/%s/%s", baseURL, tenantSlug, subjectID)
}
