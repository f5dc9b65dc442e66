// Package providers defines the external collaborators the engine calls
// into. Implementations live in the surrounding CRM; the engine only depends
// on these contracts.
package providers

import "context"

// EmailMessage is one outbound email.
type EmailMessage struct {
	To             string
	Subject        string
	HTML           string
	FromAddress    string
	FromName       string
	UnsubscribeURL string
}

// EmailProvider sends transactional email.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSMessage is one outbound SMS. To is already normalized to E.164.
type SMSMessage struct {
	To       string
	Body     string
	SenderID string
}

// SMSProvider sends SMS.
type SMSProvider interface {
	Send(ctx context.Context, msg SMSMessage) error
}

// TagStore manages (subject, tag) associations. Both operations are
// idempotent: assigning an already-present tag or unassigning an absent one
// succeeds.
type TagStore interface {
	Assign(ctx context.Context, subjectID, tagID string) error
	Unassign(ctx context.Context, subjectID, tagID string) error
}

// Admin is a staff user who receives operational notifications.
type Admin struct {
	Email string
}

// AdminDirectory lists the administrator-role users of a tenant.
type AdminDirectory interface {
	ListAdmins(ctx context.Context, tenantID string) ([]Admin, error)
}

// AuditEntry is one audit log record.
type AuditEntry struct {
	TenantID   string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
}

// AuditLog records audit entries.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Donor is the projection of a CRM donor the engine needs for channel
// dispatch: contact points and per-channel consent.
type Donor struct {
	ID           string
	Email        string
	Phone        string
	EmailConsent bool
	SMSConsent   bool
}

// DonorDirectory resolves the subject of a run.
type DonorDirectory interface {
	GetDonor(ctx context.Context, tenantID, donorID string) (*Donor, error)
}
