package businessflow

import (
	"errors"
	"testing"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executedBudgetIncrease runs a budget increase rule against a campaign with
// a 100.00 daily budget and returns the executed audit entry.
func executedBudgetIncrease(t *testing.T, env *flowEnv) (*models.AutomationLog, *models.AdCampaign) {
	t.Helper()
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(100.0))
	require.NoError(t, err)
	require.NoError(t, env.fixtures.CreateSnapshots(models.ScopeKindCampaign, campaign.ID, 7, func(day int, s *models.MetricSnapshot) {
		s.ROAS = 5.0
	}))

	_, err = env.fixtures.CreateTestRule(1, models.ScopeKindCampaign,
		models.RuleCondition{
			Metric:       "roas",
			Operator:     models.OperatorGreaterOrEqual,
			Threshold:    3.0,
			DurationDays: 7,
			Aggregation:  models.AggregationAvg,
		},
		models.ActionSpec{Type: models.ActionIncreaseBudget})
	require.NoError(t, err)

	summary, err := env.evaluation.EvaluateTenant(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Executed)

	tenantID := uint(1)
	entries, err := env.logRepo.ByFilter(ctx, models.AutomationLogFilter{TenantID: &tenantID}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	return entries[0], campaign
}

func TestRollbackRestoresPreviousBudget(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()
	entry, campaign := executedBudgetIncrease(t, env)

	rolledBack, err := env.rollback.Rollback(ctx, entry.UUID, 7)
	require.NoError(t, err)
	require.NotNil(t, rolledBack.RolledBackAt)
	require.NotNil(t, rolledBack.RolledBackBy)
	assert.Equal(t, uint(7), *rolledBack.RolledBackBy)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
	require.NoError(t, err)
	daily, _ := target.BudgetValues()
	require.NotNil(t, daily)
	assert.InDelta(t, 100.0, *daily, 1e-9)

	// The execution call plus the revert call.
	calls := env.platform.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "SetBudget", calls[1].Method)
	require.NotNil(t, calls[1].Daily)
	assert.InDelta(t, 100.0, *calls[1].Daily, 1e-9)

	t.Run("SecondRollbackFails", func(t *testing.T) {
		_, err := env.rollback.Rollback(ctx, entry.UUID, 7)
		assert.ErrorIs(t, err, ErrAlreadyRolledBack)
		assert.Len(t, env.platform.Calls(), 2)
	})
}

func TestRollbackPlatformFailureLeavesEntryRetryable(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()
	entry, campaign := executedBudgetIncrease(t, env)

	env.platform.FailWith(errors.New("platform unavailable"))
	_, err := env.rollback.Rollback(ctx, entry.UUID, 7)
	require.Error(t, err)

	// The entry is untouched and the mirror keeps the executed budget.
	fresh, err := env.logRepo.ByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, fresh.RolledBackAt)
	assert.True(t, fresh.IsRollbackable())

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
	require.NoError(t, err)
	daily, _ := target.BudgetValues()
	require.NotNil(t, daily)
	assert.InDelta(t, 120.0, *daily, 1e-9)

	t.Run("RetrySucceeds", func(t *testing.T) {
		env.platform.FailWith(nil)
		rolledBack, err := env.rollback.Rollback(ctx, entry.UUID, 7)
		require.NoError(t, err)
		assert.NotNil(t, rolledBack.RolledBackAt)
	})
}

func TestRollbackRejectsIneligibleEntries(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	t.Run("UnknownEntry", func(t *testing.T) {
		_, err := env.rollback.Rollback(ctx, uuid.New(), 7)
		assert.ErrorIs(t, err, ErrLogEntryNotFound)
	})

	t.Run("PendingEntry", func(t *testing.T) {
		entry := &models.AutomationLog{
			TenantID:    1,
			RuleID:      1,
			RuleName:    "Test Rule",
			EntityType:  models.ScopeKindAd,
			EntityID:    1,
			ActionType:  models.ActionPauseAd,
			Status:      models.AutomationLogStatusPending,
			CanRollback: true,
		}
		require.NoError(t, env.logRepo.Save(ctx, entry))

		_, err := env.rollback.Rollback(ctx, entry.UUID, 7)
		assert.ErrorIs(t, err, ErrNotRollbackable)
	})

	t.Run("IrreversibleAction", func(t *testing.T) {
		entry := &models.AutomationLog{
			TenantID:   1,
			RuleID:     1,
			RuleName:   "Test Rule",
			EntityType: models.ScopeKindAdSet,
			EntityID:   1,
			ActionType: models.ActionDuplicateAdSet,
			Status:     models.AutomationLogStatusExecuted,
		}
		require.NoError(t, env.logRepo.Save(ctx, entry))

		_, err := env.rollback.Rollback(ctx, entry.UUID, 7)
		assert.ErrorIs(t, err, ErrNotRollbackable)
	})
}
