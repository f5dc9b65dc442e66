package automation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence/file"
	"github.com/donorflow/donorflow/pkg/registry"
)

func newTestEngine(t *testing.T) (*Engine, *file.Persistence, *registry.Registry) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(testLogger())
	engine := NewEngine(persistence, reg, nil, nil, testLogger())

	return engine, persistence, reg
}

func TestEngineFireStartsOneRunPerMatch(t *testing.T) {
	t.Parallel()

	engine, persistence, reg := newTestEngine(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	saveAutomation(t, persistence, &models.Automation{
		ID: "first", TenantID: "tenant-1", TriggerKind: models.TriggerNewDonation, Active: true,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionAddTag}},
	})
	saveAutomation(t, persistence, &models.Automation{
		ID: "second", TenantID: "tenant-1", TriggerKind: models.TriggerNewDonation, Active: true,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionAddTag}},
	})
	saveAutomation(t, persistence, &models.Automation{
		ID: "unrelated", TenantID: "tenant-1", TriggerKind: models.TriggerCampaignEnded, Active: true,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionAddTag}},
	})

	ctx := context.Background()

	executionIDs, err := engine.Fire(ctx, "tenant-1", models.TriggerNewDonation, map[string]any{
		"subject_id": "donor-1",
	})
	require.NoError(t, err)
	require.Len(t, executionIDs, 2)

	engine.Wait()

	assert.Equal(t, int32(2), executed.Load())

	for _, id := range executionIDs {
		stored, err := persistence.ExecutionRepository().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
		assert.Equal(t, "donor-1", stored.SubjectID)
	}
}

func TestEngineFireRejectsUnknownTriggerKind(t *testing.T) {
	t.Parallel()

	engine, _, _ := newTestEngine(t)

	_, err := engine.Fire(context.Background(), "tenant-1", models.TriggerKind("DONATION"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trigger kind")
}

func TestEngineFireRunFailureIsPersistedNotReturned(t *testing.T) {
	t.Parallel()

	engine, persistence, reg := newTestEngine(t)

	reg.RegisterAction(&stubFactory{
		kind: models.ActionSendEmail,
		fn: func(_ context.Context, _ models.RunContext) (models.ActionResult, error) {
			return models.ActionResult{}, assert.AnError
		},
	})

	saveAutomation(t, persistence, &models.Automation{
		ID: "broken", TenantID: "tenant-1", TriggerKind: models.TriggerNewDonation, Active: true,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionSendEmail}},
	})

	ctx := context.Background()

	executionIDs, err := engine.Fire(ctx, "tenant-1", models.TriggerNewDonation, nil)
	require.NoError(t, err)
	require.Len(t, executionIDs, 1)

	engine.Wait()

	stored, err := persistence.ExecutionRepository().GetByID(ctx, executionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestEngineFireAutomationRequiresActive(t *testing.T) {
	t.Parallel()

	engine, persistence, reg := newTestEngine(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	saveAutomation(t, persistence, &models.Automation{
		ID: "paused", TenantID: "tenant-1", TriggerKind: models.TriggerManual, Active: false,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionAddTag}},
	})

	_, err := engine.FireAutomation(context.Background(), "paused", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
	assert.Equal(t, int32(0), executed.Load())
}

func TestEngineFireAutomationManualRun(t *testing.T) {
	t.Parallel()

	engine, persistence, reg := newTestEngine(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	saveAutomation(t, persistence, &models.Automation{
		ID: "manual", TenantID: "tenant-1", TriggerKind: models.TriggerManual, Active: true,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionAddTag}},
	})

	ctx := context.Background()

	executionID, err := engine.FireAutomation(ctx, "manual", map[string]any{"subject_id": "donor-9"})
	require.NoError(t, err)

	engine.Wait()

	stored, err := persistence.ExecutionRepository().GetByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Equal(t, "donor-9", stored.SubjectID)
	assert.Equal(t, int32(1), executed.Load())
}

func TestEngineSweepResumesDueExecutions(t *testing.T) {
	t.Parallel()

	engine, persistence, reg := newTestEngine(t)

	var executed atomic.Int32

	reg.RegisterAction(countingFactory(models.ActionAddTag, &executed))

	saveAutomation(t, persistence, &models.Automation{
		ID: "delayed", TenantID: "tenant-1", TriggerKind: models.TriggerNewDonation, Active: true,
		Steps: []models.Step{{Order: 0, ActionKind: models.ActionAddTag, DelayMinutes: 60}},
	})

	ctx := context.Background()
	now := time.Now().UTC()
	resumeAt := now.Add(-time.Minute)

	execution := &models.Execution{
		ID:           "exec-due",
		AutomationID: "delayed",
		TenantID:     "tenant-1",
		SubjectID:    "donor-1",
		Status:       models.ExecutionStatusWaiting,
		ResumeAt:     &resumeAt,
		ContextData: map[string]any{
			"subject_id":   "donor-1",
			"next_step":    0,
			"delay_served": 0,
		},
		CreatedAt: now.Add(-2 * time.Hour),
	}
	require.NoError(t, persistence.ExecutionRepository().Create(ctx, execution))

	notDue := now.Add(time.Hour)
	require.NoError(t, persistence.ExecutionRepository().Create(ctx, &models.Execution{
		ID:           "exec-later",
		AutomationID: "delayed",
		TenantID:     "tenant-1",
		Status:       models.ExecutionStatusWaiting,
		ResumeAt:     &notDue,
		CreatedAt:    now,
	}))

	require.NoError(t, engine.Sweep(ctx, now))
	engine.Wait()

	assert.Equal(t, int32(1), executed.Load())

	resumed, err := persistence.ExecutionRepository().GetByID(ctx, "exec-due")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	later, err := persistence.ExecutionRepository().GetByID(ctx, "exec-later")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, later.Status)

	// A second sweep finds nothing left to do.
	require.NoError(t, engine.Sweep(ctx, now))
	engine.Wait()
	assert.Equal(t, int32(1), executed.Load())
}
