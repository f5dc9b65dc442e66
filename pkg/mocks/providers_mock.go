// Package mocks provides testify mocks for the provider and bus contracts.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/donorflow/donorflow/pkg/providers"
)

// MockEmailProvider is a mock implementation of providers.EmailProvider.
type MockEmailProvider struct {
	mock.Mock
}

func (m *MockEmailProvider) Send(ctx context.Context, msg providers.EmailMessage) error {
	args := m.Called(ctx, msg)

	return args.Error(0)
}

// MockSMSProvider is a mock implementation of providers.SMSProvider.
type MockSMSProvider struct {
	mock.Mock
}

func (m *MockSMSProvider) Send(ctx context.Context, msg providers.SMSMessage) error {
	args := m.Called(ctx, msg)

	return args.Error(0)
}

// MockTagStore is a mock implementation of providers.TagStore.
type MockTagStore struct {
	mock.Mock
}

func (m *MockTagStore) Assign(ctx context.Context, subjectID, tagID string) error {
	args := m.Called(ctx, subjectID, tagID)

	return args.Error(0)
}

func (m *MockTagStore) Unassign(ctx context.Context, subjectID, tagID string) error {
	args := m.Called(ctx, subjectID, tagID)

	return args.Error(0)
}

// MockAdminDirectory is a mock implementation of providers.AdminDirectory.
type MockAdminDirectory struct {
	mock.Mock
}

func (m *MockAdminDirectory) ListAdmins(ctx context.Context, tenantID string) ([]providers.Admin, error) {
	args := m.Called(ctx, tenantID)

	admins, _ := args.Get(0).([]providers.Admin)

	return admins, args.Error(1)
}

// MockAuditLog is a mock implementation of providers.AuditLog.
type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Record(ctx context.Context, entry providers.AuditEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

// MockDonorDirectory is a mock implementation of providers.DonorDirectory.
type MockDonorDirectory struct {
	mock.Mock
}

func (m *MockDonorDirectory) GetDonor(ctx context.Context, tenantID, donorID string) (*providers.Donor, error) {
	args := m.Called(ctx, tenantID, donorID)

	donor, _ := args.Get(0).(*providers.Donor)

	return donor, args.Error(1)
}
