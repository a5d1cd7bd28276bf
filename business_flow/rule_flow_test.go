package businessflow

import (
	"testing"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestRule(tenantID uint) *models.AutomationRule {
	return &models.AutomationRule{
		TenantID:  tenantID,
		Name:      "Pause low CTR ads",
		ScopeKind: models.ScopeKindAd,
		Condition: models.RuleCondition{
			Metric:       "ctr",
			Operator:     models.OperatorLessThan,
			Threshold:    0.5,
			DurationDays: 7,
			Aggregation:  models.AggregationAvg,
		},
		Action:   models.ActionSpec{Type: models.ActionPauseAd},
		IsActive: true,
	}
}

func TestRuleFlowCreateValidation(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewRuleFlow(env.ruleRepo)
	ctx := testingutil.CreateTestContext()

	mutations := []struct {
		name    string
		mutate  func(r *models.AutomationRule)
		wantErr error
	}{
		{"MissingName", func(r *models.AutomationRule) { r.Name = "" }, ErrRuleNameRequired},
		{"BadScope", func(r *models.AutomationRule) { r.ScopeKind = "creative" }, ErrRuleScopeInvalid},
		{"UnknownMetric", func(r *models.AutomationRule) { r.Condition.Metric = "frequency" }, ErrRuleMetricInvalid},
		{"BadOperator", func(r *models.AutomationRule) { r.Condition.Operator = "~" }, ErrRuleOperatorInvalid},
		{"BadAggregation", func(r *models.AutomationRule) { r.Condition.Aggregation = "median" }, ErrRuleAggregationInvalid},
		{"WindowTooShort", func(r *models.AutomationRule) { r.Condition.DurationDays = 0 }, ErrRuleWindowInvalid},
		{"WindowTooLong", func(r *models.AutomationRule) { r.Condition.DurationDays = 91 }, ErrRuleWindowInvalid},
		{"BadAction", func(r *models.AutomationRule) { r.Action.Type = "archive_ad" }, ErrRuleActionInvalid},
		{"NegativeCooldown", func(r *models.AutomationRule) { r.CooldownHours = -1 }, ErrRuleCooldownInvalid},
		{"BudgetActionOnAd", func(r *models.AutomationRule) {
			r.Action.Type = models.ActionIncreaseBudget
		}, ErrRuleActionScopeMismatch},
		{"DuplicateActionOnCampaign", func(r *models.AutomationRule) {
			r.ScopeKind = models.ScopeKindCampaign
			r.Action.Type = models.ActionDuplicateAdSet
		}, ErrRuleActionScopeMismatch},
	}

	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			rule := validTestRule(1)
			tc.mutate(rule)
			_, err := flow.CreateRule(ctx, rule)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("ValidRulePersists", func(t *testing.T) {
		rule := validTestRule(1)
		created, err := flow.CreateRule(ctx, rule)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.NotEqual(t, uuid.Nil, created.UUID)
	})
}

func TestRuleFlowTenantScoping(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewRuleFlow(env.ruleRepo)
	ctx := testingutil.CreateTestContext()

	rule, err := flow.CreateRule(ctx, validTestRule(1))
	require.NoError(t, err)

	t.Run("OwnerSeesRule", func(t *testing.T) {
		found, err := flow.GetRule(ctx, 1, rule.UUID)
		require.NoError(t, err)
		assert.Equal(t, rule.ID, found.ID)
	})

	t.Run("OtherTenantGetsNotFound", func(t *testing.T) {
		_, err := flow.GetRule(ctx, 2, rule.UUID)
		assert.ErrorIs(t, err, ErrRuleNotFound)
	})

	t.Run("OtherTenantCannotUpdate", func(t *testing.T) {
		name := "hijacked"
		_, err := flow.UpdateRule(ctx, 2, rule.UUID, RuleUpdate{Name: &name})
		assert.ErrorIs(t, err, ErrRuleNotFound)
	})
}

func TestRuleFlowUpdate(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewRuleFlow(env.ruleRepo)
	ctx := testingutil.CreateTestContext()

	rule, err := flow.CreateRule(ctx, validTestRule(1))
	require.NoError(t, err)

	t.Run("EmptyUpdateRejected", func(t *testing.T) {
		_, err := flow.UpdateRule(ctx, 1, rule.UUID, RuleUpdate{})
		assert.ErrorIs(t, err, ErrRuleUpdateRequired)
	})

	t.Run("PartialUpdateKeepsOtherFields", func(t *testing.T) {
		priority := 50
		updated, err := flow.UpdateRule(ctx, 1, rule.UUID, RuleUpdate{Priority: &priority})
		require.NoError(t, err)
		assert.Equal(t, 50, updated.Priority)
		assert.Equal(t, rule.Name, updated.Name)
		assert.Equal(t, rule.Condition, updated.Condition)
	})

	t.Run("UpdateRevalidates", func(t *testing.T) {
		bad := models.RuleCondition{
			Metric:       "frequency",
			Operator:     models.OperatorLessThan,
			Threshold:    1,
			DurationDays: 7,
			Aggregation:  models.AggregationAvg,
		}
		_, err := flow.UpdateRule(ctx, 1, rule.UUID, RuleUpdate{Condition: &bad})
		assert.ErrorIs(t, err, ErrRuleMetricInvalid)
	})

	t.Run("DeactivateKeepsTheRow", func(t *testing.T) {
		deactivated, err := flow.DeactivateRule(ctx, 1, rule.UUID)
		require.NoError(t, err)
		assert.False(t, deactivated.IsActive)

		found, err := flow.GetRule(ctx, 1, rule.UUID)
		require.NoError(t, err)
		assert.False(t, found.IsActive)
	})
}

func TestRuleFlowListPagination(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewRuleFlow(env.ruleRepo)
	ctx := testingutil.CreateTestContext()

	for i := 0; i < 3; i++ {
		rule := validTestRule(1)
		rule.Priority = i
		_, err := flow.CreateRule(ctx, rule)
		require.NoError(t, err)
	}

	tenantID := uint(1)
	filter := models.AutomationRuleFilter{TenantID: &tenantID}

	t.Run("PageBoundsValidated", func(t *testing.T) {
		_, _, err := flow.ListRules(ctx, filter, 0, 20)
		assert.ErrorIs(t, err, ErrInvalidPage)

		_, _, err = flow.ListRules(ctx, filter, 1, 500)
		assert.ErrorIs(t, err, ErrInvalidPageSize)
	})

	t.Run("PriorityOrderingAndTotal", func(t *testing.T) {
		rules, total, err := flow.ListRules(ctx, filter, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, rules, 2)
		assert.Equal(t, 2, rules[0].Priority)
		assert.Equal(t, 1, rules[1].Priority)
	})
}
