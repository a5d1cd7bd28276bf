package businessflow

import (
	"errors"
	"testing"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/arvand/adpilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteForMatchPlatformFailure(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(100.0))
	require.NoError(t, err)

	rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindCampaign,
		models.RuleCondition{
			Metric:       "spend",
			Operator:     models.OperatorGreaterThan,
			Threshold:    10,
			DurationDays: 3,
			Aggregation:  models.AggregationSum,
		},
		models.ActionSpec{Type: models.ActionIncreaseBudget})
	require.NoError(t, err)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
	require.NoError(t, err)

	env.platform.FailWith(errors.New("rate limited"))
	entry, err := env.executor.ExecuteForMatch(ctx, rule, target)
	require.NoError(t, err)

	assert.Equal(t, models.AutomationLogStatusFailed, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "rate limited")

	t.Run("CooldownNotStarted", func(t *testing.T) {
		fresh, err := env.ruleRepo.ByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Nil(t, fresh.LastExecutedAt)
		assert.Equal(t, 0, fresh.ExecutionCount)
	})

	t.Run("LocalMirrorUnchanged", func(t *testing.T) {
		fresh, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
		require.NoError(t, err)
		daily, _ := fresh.BudgetValues()
		require.NotNil(t, daily)
		assert.InDelta(t, 100.0, *daily, 1e-9)
	})
}

func TestExecuteForMatchUnsupportedAction(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(100.0))
	require.NoError(t, err)

	rule := &models.AutomationRule{
		TenantID:  1,
		Name:      "Test Rule",
		ScopeKind: models.ScopeKindCampaign,
		Action:    models.ActionSpec{Type: models.ActionType("delete_everything")},
		IsActive:  true,
	}
	require.NoError(t, env.db.DB.Create(rule).Error)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
	require.NoError(t, err)

	entry, err := env.executor.ExecuteForMatch(ctx, rule, target)
	require.NoError(t, err)

	assert.Equal(t, models.AutomationLogStatusFailed, entry.Status)
	assert.False(t, entry.CanRollback)
	assert.Empty(t, env.platform.Calls())

	t.Run("FailedEntryPersisted", func(t *testing.T) {
		persisted, err := env.logRepo.ByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AutomationLogStatusFailed, persisted.Status)
		assert.Equal(t, models.ActionType("delete_everything"), persisted.ActionType)
		require.NotNil(t, persisted.ErrorMessage)
		assert.Contains(t, *persisted.ErrorMessage, "unsupported action type")
	})
}

func TestExecuteForMatchBudgetActionWithoutBudget(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	// Campaign without any budget set.
	campaign, err := env.fixtures.CreateTestCampaign(account, nil)
	require.NoError(t, err)

	rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindCampaign,
		models.RuleCondition{
			Metric:       "spend",
			Operator:     models.OperatorGreaterThan,
			Threshold:    10,
			DurationDays: 3,
			Aggregation:  models.AggregationSum,
		},
		models.ActionSpec{Type: models.ActionDecreaseBudget})
	require.NoError(t, err)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
	require.NoError(t, err)

	entry, err := env.executor.ExecuteForMatch(ctx, rule, target)
	require.NoError(t, err)

	assert.Equal(t, models.AutomationLogStatusFailed, entry.Status)
	assert.Empty(t, env.platform.Calls())
}

func TestExecuteForMatchDuplicateAdSet(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(50.0))
	require.NoError(t, err)
	adSet, err := env.fixtures.CreateTestAdSet(campaign, utils.ToPtr(25.0))
	require.NoError(t, err)

	rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindAdSet,
		models.RuleCondition{
			Metric:       "roas",
			Operator:     models.OperatorGreaterOrEqual,
			Threshold:    2.0,
			DurationDays: 7,
			Aggregation:  models.AggregationAvg,
		},
		models.ActionSpec{
			Type:   models.ActionDuplicateAdSet,
			Params: map[string]any{"name_suffix": " v2"},
		})
	require.NoError(t, err)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindAdSet, adSet.ID)
	require.NoError(t, err)

	entry, err := env.executor.ExecuteForMatch(ctx, rule, target)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationLogStatusExecuted, entry.Status)

	// Duplication cannot be undone.
	assert.False(t, entry.CanRollback)

	calls := env.platform.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "DuplicateAdSet", calls[0].Method)
	assert.Equal(t, adSet.Name+" v2", calls[0].NewName)

	t.Run("CopyMirroredLocallyAndPaused", func(t *testing.T) {
		var copies []models.AdSet
		require.NoError(t, env.db.DB.
			Where("campaign_id = ? AND id <> ?", campaign.ID, adSet.ID).
			Find(&copies).Error)
		require.Len(t, copies, 1)
		assert.Equal(t, adSet.Name+" v2", copies[0].Name)
		assert.Equal(t, models.EntityStatusPaused, copies[0].Status)
		require.NotNil(t, copies[0].DailyBudget)
		assert.InDelta(t, 25.0, *copies[0].DailyBudget, 1e-9)
	})
}

func TestExecuteForMatchCustomPercent(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(200.0))
	require.NoError(t, err)

	rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindCampaign,
		models.RuleCondition{
			Metric:       "cpc",
			Operator:     models.OperatorGreaterThan,
			Threshold:    5,
			DurationDays: 3,
			Aggregation:  models.AggregationAvg,
		},
		models.ActionSpec{
			Type:   models.ActionDecreaseBudget,
			Params: map[string]any{"percent": 25.0},
		})
	require.NoError(t, err)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
	require.NoError(t, err)

	entry, err := env.executor.ExecuteForMatch(ctx, rule, target)
	require.NoError(t, err)
	require.Equal(t, models.AutomationLogStatusExecuted, entry.Status)
	assert.InDelta(t, 150.0, entry.NewState["daily_budget"].(float64), 1e-9)
}
