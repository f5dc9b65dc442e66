// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/donorflow/donorflow/pkg/actions/aisuggestion"
	"github.com/donorflow/donorflow/pkg/actions/noop"
	"github.com/donorflow/donorflow/pkg/actions/notifyadmin"
	"github.com/donorflow/donorflow/pkg/actions/sendemail"
	"github.com/donorflow/donorflow/pkg/actions/sendsms"
	"github.com/donorflow/donorflow/pkg/actions/tag"
	"github.com/donorflow/donorflow/pkg/providers"
	"github.com/donorflow/donorflow/pkg/providers/devlog"
	"github.com/donorflow/donorflow/pkg/registry"
)

// Providers bundles the CRM-side integrations the actions depend on, plus the
// settings that parameterize them.
type Providers struct {
	Email  providers.EmailProvider
	SMS    providers.SMSProvider
	Tags   providers.TagStore
	Admins providers.AdminDirectory
	Audit  providers.AuditLog
	Donors providers.DonorDirectory

	UnsubscribeBaseURL string
	SMSDefaultRegion   string
}

// NewDevProviders returns the logging-only providers used in development and
// tests.
func NewDevProviders(logger *slog.Logger) Providers {
	return Providers{
		Email:  devlog.NewEmailProvider(logger),
		SMS:    devlog.NewSMSProvider(logger),
		Tags:   devlog.NewTagStore(logger),
		Admins: devlog.NewAdminDirectory(),
		Audit:  devlog.NewAuditLog(logger),
		Donors: devlog.NewDonorDirectory(),

		UnsubscribeBaseURL: "http://localhost:8080",
		SMSDefaultRegion:   "RO",
	}
}

func NewRegistry(logger *slog.Logger, p Providers) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(sendemail.NewFactory(p.Email, p.Donors, p.UnsubscribeBaseURL))
	reg.RegisterAction(sendsms.NewFactory(p.SMS, p.Donors, p.SMSDefaultRegion))
	reg.RegisterAction(tag.NewAddFactory(p.Tags))
	reg.RegisterAction(tag.NewRemoveFactory(p.Tags))
	reg.RegisterAction(notifyadmin.NewFactory(p.Email, p.Admins))
	reg.RegisterAction(aisuggestion.NewFactory(p.Audit))
	reg.RegisterAction(noop.NewWaitFactory())
	reg.RegisterAction(noop.NewConditionFactory())

	return reg
}
