package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/persistence/file"
)

func TestAutomationRepositorySaveAndGet(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).AutomationRepository()
	ctx := context.Background()

	automation := &models.Automation{
		ID:          "auto-1",
		TenantID:    "tenant-1",
		Name:        "Welcome flow",
		TriggerKind: models.TriggerDonorCreated,
		Active:      true,
		Steps: []models.Step{
			{Order: 0, ActionKind: models.ActionSendEmail, Config: map[string]any{"subject": "Hi", "html": "<p>Hi</p>"}},
		},
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.Save(ctx, automation))

	loaded, err := repo.GetByID(ctx, "auto-1")
	require.NoError(t, err)
	assert.Equal(t, automation.Name, loaded.Name)
	assert.Equal(t, automation.TriggerKind, loaded.TriggerKind)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.ActionSendEmail, loaded.Steps[0].ActionKind)
}

func TestAutomationRepositoryGetByIDNotFound(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).AutomationRepository()

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestAutomationRepositoryListActiveByTrigger(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).AutomationRepository()
	ctx := context.Background()

	save := func(id, tenantID string, kind models.TriggerKind, active bool) {
		require.NoError(t, repo.Save(ctx, &models.Automation{
			ID: id, TenantID: tenantID, TriggerKind: kind, Active: active, CreatedAt: time.Now().UTC(),
		}))
	}

	save("a", "tenant-1", models.TriggerNewDonation, true)
	save("b", "tenant-1", models.TriggerNewDonation, false)
	save("c", "tenant-1", models.TriggerTagAdded, true)
	save("d", "tenant-2", models.TriggerNewDonation, true)

	active, err := repo.ListActiveByTrigger(ctx, "tenant-1", models.TriggerNewDonation)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}

func TestAutomationRepositoryDeactivate(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).AutomationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Automation{
		ID: "auto-1", TenantID: "tenant-1", TriggerKind: models.TriggerNewDonation, Active: true,
	}))

	require.NoError(t, repo.Deactivate(ctx, "auto-1"))

	loaded, err := repo.GetByID(ctx, "auto-1")
	require.NoError(t, err)
	assert.False(t, loaded.Active)

	// The definition itself is retained.
	listed, err := repo.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestExecutionRepositoryLifecycle(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()
	ctx := context.Background()

	execution := &models.Execution{
		ID:           "exec-1",
		AutomationID: "auto-1",
		TenantID:     "tenant-1",
		Status:       models.ExecutionStatusRunning,
		CreatedAt:    time.Now().UTC(),
	}

	require.NoError(t, repo.Create(ctx, execution))

	execution.Status = models.ExecutionStatusCompleted
	require.NoError(t, repo.Update(ctx, execution))

	loaded, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)

	listed, err := repo.ListByAutomation(ctx, "auto-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestExecutionRepositoryUpdateMissing(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()

	err := repo.Update(context.Background(), &models.Execution{ID: "ghost"})
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepositoryListDue(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "due", Status: models.ExecutionStatusWaiting, ResumeAt: &past, CreatedAt: now,
	}))
	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "later", Status: models.ExecutionStatusWaiting, ResumeAt: &future, CreatedAt: now,
	}))
	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "running", Status: models.ExecutionStatusRunning, CreatedAt: now,
	}))

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)
}

func TestExecutionRepositoryClaimIsExclusive(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "exec-1", Status: models.ExecutionStatusWaiting, ResumeAt: &past, CreatedAt: now,
	}))

	claimed, err := repo.Claim(ctx, "exec-1", now)
	require.NoError(t, err)
	assert.True(t, claimed)

	// The first claim transitioned the execution to running; the second finds
	// nothing to claim.
	claimed, err = repo.Claim(ctx, "exec-1", now)
	require.NoError(t, err)
	assert.False(t, claimed)

	loaded, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Nil(t, loaded.ResumeAt)
}

func TestExecutionRepositoryClaimNotYetDue(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	require.NoError(t, repo.Create(ctx, &models.Execution{
		ID: "exec-1", Status: models.ExecutionStatusWaiting, ResumeAt: &future, CreatedAt: now,
	}))

	claimed, err := repo.Claim(ctx, "exec-1", now)
	require.NoError(t, err)
	assert.False(t, claimed)
}
