package repository

import (
	"testing"
	"time"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/arvand/adpilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createLogEntry(t *testing.T, repo AutomationLogRepository, tenantID uint, status models.AutomationLogStatus) *models.AutomationLog {
	t.Helper()

	entry := &models.AutomationLog{
		TenantID:    tenantID,
		RuleID:      1,
		RuleName:    "Test Rule",
		EntityType:  models.ScopeKindAdSet,
		EntityID:    1,
		EntityName:  "Test Ad Set",
		ActionType:  models.ActionPauseAd,
		Status:      status,
		CanRollback: true,
	}
	require.NoError(t, repo.Save(testingutil.CreateTestContext(), entry))
	return entry
}

func TestAutomationLogRepository(t *testing.T) {
	db, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	defer func() { _ = db.TeardownTestDB() }()

	repo := NewAutomationLogRepository(db.DB)
	ctx := testingutil.CreateTestContext()

	t.Run("UpdateStatusIfGuardsOnCurrentStatus", func(t *testing.T) {
		entry := createLogEntry(t, repo, 1, models.AutomationLogStatusPending)

		now := utils.UTCNow()
		ok, err := repo.UpdateStatusIf(ctx, entry.ID,
			models.AutomationLogStatusPending, models.AutomationLogStatusApproved,
			map[string]any{"approved_by": uint(9), "approved_at": now})
		require.NoError(t, err)
		assert.True(t, ok)

		// Second approval attempt finds the entry no longer pending.
		ok, err = repo.UpdateStatusIf(ctx, entry.ID,
			models.AutomationLogStatusPending, models.AutomationLogStatusApproved,
			map[string]any{"approved_by": uint(10), "approved_at": now})
		require.NoError(t, err)
		assert.False(t, ok)

		updated, err := repo.ByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AutomationLogStatusApproved, updated.Status)
		require.NotNil(t, updated.ApprovedBy)
		assert.Equal(t, uint(9), *updated.ApprovedBy)
	})

	t.Run("MarkRolledBackAppliesAtMostOnce", func(t *testing.T) {
		entry := createLogEntry(t, repo, 1, models.AutomationLogStatusExecuted)

		now := utils.UTCNow()
		ok, err := repo.MarkRolledBack(ctx, entry.ID, 5, now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkRolledBack(ctx, entry.ID, 6, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)

		updated, err := repo.ByID(ctx, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.RolledBackBy)
		assert.Equal(t, uint(5), *updated.RolledBackBy)
	})

	t.Run("PendingCountByTenant", func(t *testing.T) {
		createLogEntry(t, repo, 3, models.AutomationLogStatusPending)
		createLogEntry(t, repo, 3, models.AutomationLogStatusPending)
		createLogEntry(t, repo, 3, models.AutomationLogStatusExecuted)
		createLogEntry(t, repo, 4, models.AutomationLogStatusPending)

		count, err := repo.PendingCountByTenant(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("ExpirePendingSweepsOnlyOldEntries", func(t *testing.T) {
		stale := createLogEntry(t, repo, 5, models.AutomationLogStatusPending)
		require.NoError(t, db.DB.Model(&models.AutomationLog{}).
			Where("id = ?", stale.ID).
			Update("created_at", utils.UTCNow().Add(-100*time.Hour)).Error)

		fresh := createLogEntry(t, repo, 5, models.AutomationLogStatusPending)

		swept, err := repo.ExpirePending(ctx, utils.UTCNow().Add(-72*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), swept)

		updated, err := repo.ByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AutomationLogStatusExpired, updated.Status)

		untouched, err := repo.ByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AutomationLogStatusPending, untouched.Status)
	})

	t.Run("ByFilterRollbackable", func(t *testing.T) {
		executed := createLogEntry(t, repo, 6, models.AutomationLogStatusExecuted)
		rolledBack := createLogEntry(t, repo, 6, models.AutomationLogStatusExecuted)
		_, err := repo.MarkRolledBack(ctx, rolledBack.ID, 1, utils.UTCNow())
		require.NoError(t, err)

		tenantID := uint(6)
		rollbackable := true
		entries, err := repo.ByFilter(ctx, models.AutomationLogFilter{
			TenantID:     &tenantID,
			Rollbackable: &rollbackable,
		}, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, executed.ID, entries[0].ID)
	})
}
