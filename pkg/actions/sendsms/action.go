// Package sendsms implements the consent-gated SMS action.
package sendsms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
	"github.com/donorflow/donorflow/pkg/providers"
)

type Factory struct {
	sms           providers.SMSProvider
	donors        providers.DonorDirectory
	defaultRegion string
}

// NewFactory creates the SEND_SMS factory. defaultRegion is the ISO 3166-1
// alpha-2 country used to normalize national-format numbers.
func NewFactory(sms providers.SMSProvider, donors providers.DonorDirectory, defaultRegion string) *Factory {
	if defaultRegion == "" {
		defaultRegion = "RO"
	}

	return &Factory{sms: sms, donors: donors, defaultRegion: defaultRegion}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionSendSMS
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"properties": {
			"body": {"type": "string", "minLength": 1},
			"sender_id": {"type": "string"}
		},
		"required": ["body"]
	}`
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	var smsConfig models.SMSConfig

	err := models.DecodeConfig(config, &smsConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid sms config: %w", err)
	}

	return &Action{
		config:        smsConfig,
		sms:           f.sms,
		donors:        f.donors,
		defaultRegion: f.defaultRegion,
	}, nil
}

type Action struct {
	config        models.SMSConfig
	sms           providers.SMSProvider
	donors        providers.DonorDirectory
	defaultRegion string
}

func (a *Action) Execute(ctx context.Context, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error) {
	logger = logger.With("action_kind", "SEND_SMS")

	if runCtx.SubjectID == "" {
		logger.InfoContext(ctx, "Run has no subject, skipping SMS")

		return models.SkippedResult("no subject"), nil
	}

	donor, err := a.donors.GetDonor(ctx, runCtx.TenantID, runCtx.SubjectID)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("failed to resolve donor %s: %w", runCtx.SubjectID, err)
	}

	if donor == nil || donor.Phone == "" {
		logger.InfoContext(ctx, "Donor has no phone number, skipping")

		return models.SkippedResult("no phone number"), nil
	}

	if !donor.SMSConsent {
		logger.InfoContext(ctx, "Donor has withdrawn SMS consent, skipping")

		return models.SkippedResult("no sms consent"), nil
	}

	to, err := NormalizePhone(donor.Phone, a.defaultRegion)
	if err != nil {
		logger.WarnContext(ctx, "Phone number could not be normalized, skipping", "error", err)

		return models.SkippedResult("unparseable phone number"), nil
	}

	err = a.sms.Send(ctx, providers.SMSMessage{
		To:       to,
		Body:     a.config.Body,
		SenderID: a.config.SenderID,
	})
	if err != nil {
		logger.WarnContext(ctx, "SMS provider rejected send", "error", err)

		return models.ProviderFailure(err.Error()), nil
	}

	return models.ActionResult{OK: true, Output: map[string]any{"to": to}}, nil
}

// NormalizePhone converts a stored phone number to E.164.
func NormalizePhone(raw, defaultRegion string) (string, error) {
	number, err := phonenumbers.Parse(strings.TrimSpace(raw), defaultRegion)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}

	if !phonenumbers.IsValidNumber(number) {
		return "", fmt.Errorf("invalid phone number: %s", raw)
	}

	return phonenumbers.Format(number, phonenumbers.E164), nil
}
