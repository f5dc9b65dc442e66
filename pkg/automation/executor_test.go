package automation

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence/file"
	"github.com/donorflow/donorflow/pkg/protocol"
	"github.com/donorflow/donorflow/pkg/registry"
)

type stubAction struct {
	fn func(ctx context.Context, runCtx models.RunContext) (models.ActionResult, error)
}

func (a *stubAction) Execute(ctx context.Context, runCtx models.RunContext, _ *slog.Logger) (models.ActionResult, error) {
	return a.fn(ctx, runCtx)
}

type stubFactory struct {
	kind models.ActionKind
	fn   func(ctx context.Context, runCtx models.RunContext) (models.ActionResult, error)
}

func (f *stubFactory) Kind() models.ActionKind { return f.kind }

func (f *stubFactory) Schema() string { return `{"type": "object"}` }

func (f *stubFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &stubAction{fn: f.fn}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func countingFactory(kind models.ActionKind, counter *atomic.Int32) *stubFactory {
	return &stubFactory{
		kind: kind,
		fn: func(_ context.Context, _ models.RunContext) (models.ActionResult, error) {
			counter.Add(1)

			return models.Succeeded(), nil
		},
	}
}

func newTestExecutor(t *testing.T) (*Executor, *file.Persistence, *registry.Registry) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(testLogger())
	executor := NewExecutor(persistence.ExecutionRepository(), reg, nil, testLogger())

	return executor, persistence, reg
}

func newTestExecution(automationID string) *models.Execution {
	return &models.Execution{
		ID:           "exec-1",
		AutomationID: automationID,
		TenantID:     "tenant-1",
		SubjectID:    "donor-1",
		Status:       models.ExecutionStatusRunning,
		ContextData:  map[string]any{"subject_id": "donor-1"},
		CreatedAt:    time.Now().UTC(),
	}
}

func TestExecutorRunCompletesWithoutDelays(t *testing.T) {
	t.Parallel()

	executor, persistence, reg := newTestExecutor(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionAddTag},
			{Order: 1, ActionKind: models.ActionAddTag},
		},
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, executor.Run(ctx, automation, execution))

	assert.Equal(t, int32(2), executed.Load())
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotNil(t, execution.CompletedAt)
	assert.Nil(t, execution.ResumeAt)

	stored, err := persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	results, ok := stored.ContextData["step_results"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, results, 2)
}

func TestExecutorRunShortDelayWaitsInProcess(t *testing.T) {
	t.Parallel()

	executor, persistence, reg := newTestExecutor(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	var slept []time.Duration

	executor.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)

		return nil
	}

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionAddTag, DelayMinutes: 2},
		},
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, executor.Run(ctx, automation, execution))

	assert.Equal(t, []time.Duration{2 * time.Minute}, slept)
	assert.Equal(t, int32(1), executed.Load())
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestExecutorRunLongDelaySuspendsWithoutExecuting(t *testing.T) {
	t.Parallel()

	executor, persistence, reg := newTestExecutor(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	executor.now = func() time.Time { return now }
	executor.sleep = func(_ context.Context, _ time.Duration) error {
		t.Fatal("long delay must not block in process")

		return nil
	}

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionAddTag},
			{Order: 1, ActionKind: models.ActionAddTag, DelayMinutes: 60},
		},
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, executor.Run(ctx, automation, execution))

	// Only the first step ran; the delayed step is deferred past the resume.
	assert.Equal(t, int32(1), executed.Load())
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)

	stored, err := persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, stored.Status)
	require.NotNil(t, stored.ResumeAt)
	assert.True(t, stored.ResumeAt.Equal(now.Add(60*time.Minute)))
	assert.Equal(t, 1, stored.NextStep())
}

func TestExecutorRunResumesSuspendedExecution(t *testing.T) {
	t.Parallel()

	executor, persistence, reg := newTestExecutor(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	executor.sleep = func(_ context.Context, _ time.Duration) error {
		t.Fatal("served delay must not be waited again")

		return nil
	}

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionAddTag},
			{Order: 1, ActionKind: models.ActionAddTag, DelayMinutes: 60},
		},
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, executor.Run(ctx, automation, execution))
	require.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	require.Equal(t, int32(1), executed.Load())

	// Reload through the store so context numbers take their JSON form, then
	// hand the execution back the way the sweeper does after a claim.
	resumed, err := persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)

	resumed.Status = models.ExecutionStatusRunning
	resumed.ResumeAt = nil

	require.NoError(t, executor.Run(ctx, automation, resumed))

	assert.Equal(t, int32(2), executed.Load())
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	stored, err := persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.NotContains(t, stored.ContextData, "delay_served")
	assert.NotContains(t, stored.ContextData, "next_step")
}

func TestExecutorRunFatalErrorFailsTerminally(t *testing.T) {
	t.Parallel()

	executor, persistence, reg := newTestExecutor(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))
	reg.RegisterAction(&stubFactory{
		kind: models.ActionSendEmail,
		fn: func(_ context.Context, _ models.RunContext) (models.ActionResult, error) {
			return models.ActionResult{}, errors.New("directory unreachable")
		},
	})

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionAddTag},
			{Order: 1, ActionKind: models.ActionSendEmail},
			{Order: 2, ActionKind: models.ActionAddTag},
		},
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))

	err := executor.Run(ctx, automation, execution)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory unreachable")

	// The step after the failing one never ran.
	assert.Equal(t, int32(1), executed.Load())

	stored, getErr := persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "step 1")
	assert.NotNil(t, stored.CompletedAt)
}

func TestExecutorRunProviderFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	executor, persistence, reg := newTestExecutor(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))
	reg.RegisterAction(&stubFactory{
		kind: models.ActionSendEmail,
		fn: func(_ context.Context, _ models.RunContext) (models.ActionResult, error) {
			return models.ProviderFailure("mailbox full"), nil
		},
	})

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionSendEmail},
			{Order: 1, ActionKind: models.ActionAddTag},
		},
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, executor.Run(ctx, automation, execution))

	assert.Equal(t, int32(1), executed.Load())
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	stored, err := persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)

	results, ok := stored.ContextData["step_results"].(map[string]any)
	require.True(t, ok)

	first, ok := results["0"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, first["ok"])
	assert.Equal(t, "mailbox full", first["reason"])
}

func TestExecutorRunEmptyAutomationCompletes(t *testing.T) {
	t.Parallel()

	executor, persistence, _ := newTestExecutor(t)

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		TriggerKind: models.TriggerNewDonation,
	}

	execution := newTestExecution(automation.ID)
	ctx := context.Background()

	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))
	require.NoError(t, executor.Run(ctx, automation, execution))

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}
