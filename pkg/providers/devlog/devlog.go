// Package devlog provides logging-only provider implementations so the
// binaries run end-to-end without live channel credentials.
package devlog

import (
	"context"
	"log/slog"

	"github.com/donorflow/donorflow/pkg/providers"
)

type EmailProvider struct {
	logger *slog.Logger
}

func NewEmailProvider(logger *slog.Logger) *EmailProvider {
	return &EmailProvider{logger: logger.With("module", "devlog_email")}
}

func (p *EmailProvider) Send(ctx context.Context, msg providers.EmailMessage) error {
	p.logger.InfoContext(ctx, "Would send email", "to", msg.To, "subject", msg.Subject)

	return nil
}

type SMSProvider struct {
	logger *slog.Logger
}

func NewSMSProvider(logger *slog.Logger) *SMSProvider {
	return &SMSProvider{logger: logger.With("module", "devlog_sms")}
}

func (p *SMSProvider) Send(ctx context.Context, msg providers.SMSMessage) error {
	p.logger.InfoContext(ctx, "Would send SMS", "to", msg.To, "sender_id", msg.SenderID)

	return nil
}

type TagStore struct {
	logger *slog.Logger
}

func NewTagStore(logger *slog.Logger) *TagStore {
	return &TagStore{logger: logger.With("module", "devlog_tags")}
}

func (s *TagStore) Assign(ctx context.Context, subjectID, tagID string) error {
	s.logger.InfoContext(ctx, "Would assign tag", "subject_id", subjectID, "tag_id", tagID)

	return nil
}

func (s *TagStore) Unassign(ctx context.Context, subjectID, tagID string) error {
	s.logger.InfoContext(ctx, "Would unassign tag", "subject_id", subjectID, "tag_id", tagID)

	return nil
}

type AdminDirectory struct{}

func NewAdminDirectory() *AdminDirectory {
	return &AdminDirectory{}
}

func (d *AdminDirectory) ListAdmins(_ context.Context, _ string) ([]providers.Admin, error) {
	return nil, nil
}

type AuditLog struct {
	logger *slog.Logger
}

func NewAuditLog(logger *slog.Logger) *AuditLog {
	return &AuditLog{logger: logger.With("module", "devlog_audit")}
}

func (l *AuditLog) Record(ctx context.Context, entry providers.AuditEntry) error {
	l.logger.InfoContext(ctx, "Audit entry",
		"tenant_id", entry.TenantID,
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
	)

	return nil
}

type DonorDirectory struct{}

func NewDonorDirectory() *DonorDirectory {
	return &DonorDirectory{}
}

// GetDonor returns a donor with no contact points, so channel actions skip.
func (d *DonorDirectory) GetDonor(_ context.Context, _, donorID string) (*providers.Donor, error) {
	return &providers.Donor{ID: donorID}, nil
}
