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

func TestAutomationRuleRepository(t *testing.T) {
	db, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	defer func() { _ = db.TeardownTestDB() }()

	repo := NewAutomationRuleRepository(db.DB)
	fixtures := testingutil.NewTestFixtures(db)
	ctx := testingutil.CreateTestContext()

	condition := models.RuleCondition{
		Metric:       "roas",
		Operator:     models.OperatorGreaterOrEqual,
		Threshold:    3.0,
		DurationDays: 7,
		Aggregation:  models.AggregationAvg,
	}
	action := models.ActionSpec{Type: models.ActionIncreaseBudget}

	t.Run("ListActiveByTenantOrdersByPriority", func(t *testing.T) {
		low, err := fixtures.CreateTestRule(1, models.ScopeKindCampaign, condition, action)
		require.NoError(t, err)
		low.Priority = 1
		require.NoError(t, repo.Update(ctx, low))

		high, err := fixtures.CreateTestRule(1, models.ScopeKindCampaign, condition, action)
		require.NoError(t, err)
		high.Priority = 10
		require.NoError(t, repo.Update(ctx, high))

		inactive, err := fixtures.CreateTestRule(1, models.ScopeKindCampaign, condition, action)
		require.NoError(t, err)
		inactive.IsActive = false
		require.NoError(t, repo.Update(ctx, inactive))

		rules, err := repo.ListActiveByTenant(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, high.ID, rules[0].ID)
		assert.Equal(t, low.ID, rules[1].ID)
	})

	t.Run("ActiveTenantIDsAreDistinct", func(t *testing.T) {
		_, err := fixtures.CreateTestRule(7, models.ScopeKindAd, condition, action)
		require.NoError(t, err)
		_, err = fixtures.CreateTestRule(7, models.ScopeKindAd, condition, action)
		require.NoError(t, err)

		ids, err := repo.ActiveTenantIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint{1, 7}, ids)
	})

	t.Run("StartCooldownStampsCounters", func(t *testing.T) {
		rule, err := fixtures.CreateTestRule(2, models.ScopeKindAdSet, condition, action)
		require.NoError(t, err)

		now := utils.UTCNow()
		ok, err := repo.StartCooldown(ctx, rule, now)
		require.NoError(t, err)
		assert.True(t, ok)

		updated, err := repo.ByID(ctx, rule.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.LastExecutedAt)
		assert.Equal(t, 1, updated.ExecutionCount)
		assert.Equal(t, 1, updated.ExecutionsToday)
		require.NotNil(t, updated.ExecutionDay)
		assert.True(t, utils.SameUTCDay(*updated.ExecutionDay, now))
	})

	t.Run("StartCooldownLosesRaceOnStaleObservation", func(t *testing.T) {
		rule, err := fixtures.CreateTestRule(3, models.ScopeKindAdSet, condition, action)
		require.NoError(t, err)

		// Two workers observe the same never-executed rule.
		stale := *rule

		now := utils.UTCNow()
		ok, err := repo.StartCooldown(ctx, rule, now)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.StartCooldown(ctx, &stale, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok)

		updated, err := repo.ByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.ExecutionCount)
	})

	t.Run("StartCooldownSameDayIncrementsDailyCounter", func(t *testing.T) {
		rule, err := fixtures.CreateTestRule(4, models.ScopeKindAd, condition, action)
		require.NoError(t, err)

		now := utils.UTCNow()
		ok, err := repo.StartCooldown(ctx, rule, now)
		require.NoError(t, err)
		require.True(t, ok)

		fresh, err := repo.ByID(ctx, rule.ID)
		require.NoError(t, err)

		ok, err = repo.StartCooldown(ctx, fresh, now.Add(time.Minute))
		require.NoError(t, err)
		require.True(t, ok)

		updated, err := repo.ByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.ExecutionCount)
		assert.Equal(t, 2, updated.ExecutionsToday)
	})
}
