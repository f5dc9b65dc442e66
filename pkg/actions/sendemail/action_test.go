package sendemail_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donorflow/donorflow/pkg/actions/sendemail"
	"github.com/donorflow/donorflow/pkg/mocks"
	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/providers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func runContext() models.RunContext {
	return models.RunContext{
		ExecutionID: "exec-1",
		TenantID:    "tenant-1",
		TenantSlug:  "hopeful-hearts",
		SubjectID:   "donor-1",
		TriggerKind: models.TriggerNewDonation,
	}
}

func emailConfig() map[string]any {
	return map[string]any{
		"subject": "Thank you!",
		"html":    "<p>We appreciate your gift.</p>",
	}
}

func TestSendEmailDeliversWithUnsubscribeLink(t *testing.T) {
	t.Parallel()

	email := &mocks.MockEmailProvider{}
	donors := &mocks.MockDonorDirectory{}

	donors.On("GetDonor", mock.Anything, "tenant-1", "donor-1").Return(&providers.Donor{
		ID: "donor-1", Email: "ana@example.org", EmailConsent: true,
	}, nil)
	email.On("Send", mock.Anything, mock.MatchedBy(func(msg providers.EmailMessage) bool {
		return msg.To == "ana@example.org" &&
			msg.UnsubscribeURL == "https://crm.example.org/unsubscribe/hopeful-hearts/donor-1"
	})).Return(nil)

	factory := sendemail.NewFactory(email, donors, "https://crm.example.org")

	action, err := factory.Create(emailConfig())
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), runContext(), testLogger())
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.False(t, result.Skipped)
	email.AssertExpectations(t)
}

func TestSendEmailSkipsWithoutConsent(t *testing.T) {
	t.Parallel()

	email := &mocks.MockEmailProvider{}
	donors := &mocks.MockDonorDirectory{}

	donors.On("GetDonor", mock.Anything, "tenant-1", "donor-1").Return(&providers.Donor{
		ID: "donor-1", Email: "ana@example.org", EmailConsent: false,
	}, nil)

	factory := sendemail.NewFactory(email, donors, "https://crm.example.org")

	action, err := factory.Create(emailConfig())
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), runContext(), testLogger())
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.True(t, result.Skipped)
	assert.Equal(t, "no email consent", result.Reason)
	email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendEmailSkipsWithoutAddress(t *testing.T) {
	t.Parallel()

	email := &mocks.MockEmailProvider{}
	donors := &mocks.MockDonorDirectory{}

	donors.On("GetDonor", mock.Anything, "tenant-1", "donor-1").Return(&providers.Donor{
		ID: "donor-1", EmailConsent: true,
	}, nil)

	factory := sendemail.NewFactory(email, donors, "https://crm.example.org")

	action, err := factory.Create(emailConfig())
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), runContext(), testLogger())
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, "no email address", result.Reason)
}

func TestSendEmailSkipsWithoutSubject(t *testing.T) {
	t.Parallel()

	factory := sendemail.NewFactory(&mocks.MockEmailProvider{}, &mocks.MockDonorDirectory{}, "https://crm.example.org")

	action, err := factory.Create(emailConfig())
	require.NoError(t, err)

	runCtx := runContext()
	runCtx.SubjectID = ""

	result, err := action.Execute(context.Background(), runCtx, testLogger())
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, "no subject", result.Reason)
}

func TestSendEmailProviderRejectionIsNonFatal(t *testing.T) {
	t.Parallel()

	email := &mocks.MockEmailProvider{}
	donors := &mocks.MockDonorDirectory{}

	donors.On("GetDonor", mock.Anything, "tenant-1", "donor-1").Return(&providers.Donor{
		ID: "donor-1", Email: "ana@example.org", EmailConsent: true,
	}, nil)
	email.On("Send", mock.Anything, mock.Anything).Return(errors.New("rate limited"))

	factory := sendemail.NewFactory(email, donors, "https://crm.example.org")

	action, err := factory.Create(emailConfig())
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), runContext(), testLogger())
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, "rate limited", result.Reason)
}

func TestSendEmailDirectoryFailureIsFatal(t *testing.T) {
	t.Parallel()

	email := &mocks.MockEmailProvider{}
	donors := &mocks.MockDonorDirectory{}

	donors.On("GetDonor", mock.Anything, "tenant-1", "donor-1").Return(nil, errors.New("directory unreachable"))

	factory := sendemail.NewFactory(email, donors, "https://crm.example.org")

	action, err := factory.Create(emailConfig())
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), runContext(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory unreachable")
}

func TestUnsubscribeURL(t *testing.T) {
	t.Parallel()

	url := sendemail.UnsubscribeURL("https://crm.example.org", "hopeful-hearts", "donor-1")
	assert.Equal(t, "https://crm.example.org/unsubscribe/hopeful-hearts/donor-1", url)
}
