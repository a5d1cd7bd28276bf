package businessflow

import (
	"testing"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/arvand/adpilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTenantExecutesBudgetIncrease(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(100.0))
	require.NoError(t, err)

	// ROAS holds at 4.0 for every day of the window.
	require.NoError(t, env.fixtures.CreateSnapshots(models.ScopeKindCampaign, campaign.ID, 7, func(day int, s *models.MetricSnapshot) {
		s.ROAS = 4.0
	}))

	rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindCampaign,
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
	assert.Equal(t, 1, summary.RulesEvaluated)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Executed)
	assert.Equal(t, 0, summary.Failed)

	t.Run("BudgetScaledByDefaultPercent", func(t *testing.T) {
		target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindCampaign, campaign.ID)
		require.NoError(t, err)
		daily, _ := target.BudgetValues()
		require.NotNil(t, daily)
		assert.InDelta(t, 120.0, *daily, 1e-9)
	})

	t.Run("PlatformReceivedTheCall", func(t *testing.T) {
		calls := env.platform.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "SetBudget", calls[0].Method)
		assert.Equal(t, campaign.ExternalID, calls[0].ExternalID)
		require.NotNil(t, calls[0].Daily)
		assert.InDelta(t, 120.0, *calls[0].Daily, 1e-9)
	})

	t.Run("AuditEntryExecuted", func(t *testing.T) {
		tenantID := uint(1)
		entries, err := env.logRepo.ByFilter(ctx, models.AutomationLogFilter{TenantID: &tenantID}, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		entry := entries[0]
		assert.Equal(t, models.AutomationLogStatusExecuted, entry.Status)
		assert.Equal(t, rule.ID, entry.RuleID)
		assert.True(t, entry.CanRollback)
		assert.InDelta(t, 100.0, entry.PreviousState["daily_budget"].(float64), 1e-9)
		assert.InDelta(t, 120.0, entry.NewState["daily_budget"].(float64), 1e-9)
		assert.NotNil(t, entry.ExecutedAt)
	})

	t.Run("CooldownStarted", func(t *testing.T) {
		updated, err := env.ruleRepo.ByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.NotNil(t, updated.LastExecutedAt)
		assert.Equal(t, 1, updated.ExecutionCount)
		assert.Equal(t, 1, updated.ExecutionsToday)
	})
}

func TestEvaluateTenantSkipsRuleInCooldown(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(50.0))
	require.NoError(t, err)
	require.NoError(t, env.fixtures.CreateSnapshots(models.ScopeKindCampaign, campaign.ID, 3, func(day int, s *models.MetricSnapshot) {
		s.Spend = 100
	}))

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
	rule.CooldownHours = 24
	require.NoError(t, env.ruleRepo.Update(ctx, rule))

	first, err := env.evaluation.EvaluateTenant(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, first.Executed)

	second, err := env.evaluation.EvaluateTenant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RulesEvaluated)
	assert.Equal(t, 0, second.Executed)

	// Only the first pass reached the platform.
	assert.Len(t, env.platform.Calls(), 1)
}

func TestEvaluateTenantEmptyWindowSemantics(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(50.0))
	require.NoError(t, err)
	adSet, err := env.fixtures.CreateTestAdSet(campaign, utils.ToPtr(25.0))
	require.NoError(t, err)
	_, err = env.fixtures.CreateTestAd(adSet)
	require.NoError(t, err)

	t.Run("MinOverEmptyWindowNeverMatches", func(t *testing.T) {
		_, err := env.fixtures.CreateTestRule(1, models.ScopeKindAd,
			models.RuleCondition{
				Metric:       "ctr",
				Operator:     models.OperatorLessThan,
				Threshold:    1.0,
				DurationDays: 7,
				Aggregation:  models.AggregationMin,
			},
			models.ActionSpec{Type: models.ActionPauseAd})
		require.NoError(t, err)

		summary, err := env.evaluation.EvaluateTenant(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Matched)
		assert.Empty(t, env.platform.Calls())
	})

	t.Run("SumOverEmptyWindowIsZero", func(t *testing.T) {
		rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindAd,
			models.RuleCondition{
				Metric:       "conversions",
				Operator:     models.OperatorEqual,
				Threshold:    0,
				DurationDays: 7,
				Aggregation:  models.AggregationSum,
			},
			models.ActionSpec{Type: models.ActionCreateAlert})
		require.NoError(t, err)

		summary, err := env.evaluation.EvaluateTenant(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Matched)
		assert.Equal(t, 1, summary.Executed)

		ruleID := rule.ID
		insights, err := env.insightRepo.ByFilter(ctx, models.InsightFilter{RuleID: &ruleID}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, insights, 1)
	})
}

func TestEvaluateTenantApprovalGate(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	account, err := env.fixtures.CreateTestAccount(1)
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(account, utils.ToPtr(50.0))
	require.NoError(t, err)
	adSet, err := env.fixtures.CreateTestAdSet(campaign, utils.ToPtr(25.0))
	require.NoError(t, err)
	ad, err := env.fixtures.CreateTestAd(adSet)
	require.NoError(t, err)

	require.NoError(t, env.fixtures.CreateSnapshots(models.ScopeKindAd, ad.ID, 3, func(day int, s *models.MetricSnapshot) {
		s.CTR = 0.1
	}))

	rule, err := env.fixtures.CreateTestRule(1, models.ScopeKindAd,
		models.RuleCondition{
			Metric:       "ctr",
			Operator:     models.OperatorLessThan,
			Threshold:    0.5,
			DurationDays: 3,
			Aggregation:  models.AggregationAvg,
		},
		models.ActionSpec{Type: models.ActionPauseAd})
	require.NoError(t, err)
	rule.RequiresApproval = true
	require.NoError(t, env.ruleRepo.Update(ctx, rule))

	summary, err := env.evaluation.EvaluateTenant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 0, summary.Executed)
	assert.Equal(t, 1, summary.PendingApproval)

	// Nothing reaches the platform until an operator approves.
	assert.Empty(t, env.platform.Calls())

	tenantID := uint(1)
	entries, err := env.logRepo.ByFilter(ctx, models.AutomationLogFilter{TenantID: &tenantID}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AutomationLogStatusPending, entries[0].Status)

	// The cooldown starts on execution, not on match.
	updated, err := env.ruleRepo.ByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.LastExecutedAt)
}
