// Package notifyadmin implements the best-effort admin notification fan-out.
package notifyadmin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/protocol"
	"github.com/donorflow/donorflow/pkg/providers"
)

type Factory struct {
	email  providers.EmailProvider
	admins providers.AdminDirectory
}

func NewFactory(email providers.EmailProvider, admins providers.AdminDirectory) *Factory {
	return &Factory{email: email, admins: admins}
}

func (f *Factory) Kind() models.ActionKind {
	return models.ActionNotifyAdmin
}

func (f *Factory) Schema() string {
	return `{
		"type": "object",
		"properties": {
			"subject": {"type": "string", "minLength": 1},
			"message": {"type": "string", "minLength": 1}
		},
		"required": ["subject", "message"]
	}`
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	var notifyConfig models.NotifyAdminConfig

	err := models.DecodeConfig(config, &notifyConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid notify admin config: %w", err)
	}

	return &Action{config: notifyConfig, email: f.email, admins: f.admins}, nil
}

type Action struct {
	config models.NotifyAdminConfig
	email  providers.EmailProvider
	admins providers.AdminDirectory
}

// Execute fans out to every administrator of the tenant. Per-recipient
// failures never abort the fan-out; partial success is allowed.
func (a *Action) Execute(ctx context.Context, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error) {
	logger = logger.With("action_kind", "NOTIFY_ADMIN")

	admins, err := a.admins.ListAdmins(ctx, runCtx.TenantID)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("failed to list admins for tenant %s: %w", runCtx.TenantID, err)
	}

	if len(admins) == 0 {
		logger.InfoContext(ctx, "Tenant has no admins to notify")

		return models.SkippedResult("no admins"), nil
	}

	delivered := 0

	for _, admin := range admins {
		err := a.email.Send(ctx, providers.EmailMessage{
			To:      admin.Email,
			Subject: a.config.Subject,
			HTML:    a.config.Message,
		})
		if err != nil {
			logger.WarnContext(ctx, "Failed to notify admin", "to", admin.Email, "error", err)

			continue
		}

		delivered++
	}

	return models.ActionResult{
		OK:     true,
		Output: map[string]any{"recipients": len(admins), "delivered": delivered},
	}, nil
}
