package businessflow

import (
	"testing"
	"time"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingPauseEntry drives an approval-gated pause rule through evaluation
// and returns the resulting pending audit entry.
func pendingPauseEntry(t *testing.T, env *flowEnv) (*models.AutomationLog, *models.Ad) {
	t.Helper()
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
	require.Equal(t, 1, summary.PendingApproval)

	tenantID := uint(1)
	entries, err := env.logRepo.ByFilter(ctx, models.AutomationLogFilter{TenantID: &tenantID}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	return entries[0], ad
}

func TestApproveExecutesPendingEntry(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()
	entry, ad := pendingPauseEntry(t, env)

	approved, err := env.approval.Approve(ctx, entry.UUID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationLogStatusExecuted, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, uint(42), *approved.ApprovedBy)

	calls := env.platform.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "SetEntityStatus", calls[0].Method)
	assert.Equal(t, models.EntityStatusPaused, calls[0].Status)

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindAd, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntityStatusPaused, target.TargetStatus())

	t.Run("SecondApprovalFails", func(t *testing.T) {
		_, err := env.approval.Approve(ctx, entry.UUID, 42)
		assert.ErrorIs(t, err, ErrLogEntryNotPending)
		// Still exactly one platform call.
		assert.Len(t, env.platform.Calls(), 1)
	})
}

func TestRejectLeavesPlatformUntouched(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()
	entry, ad := pendingPauseEntry(t, env)

	reason := "seasonal campaign, keep it running"
	rejected, err := env.approval.Reject(ctx, entry.UUID, 42, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationLogStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ErrorMessage)
	assert.Equal(t, reason, *rejected.ErrorMessage)

	assert.Empty(t, env.platform.Calls())

	target, err := env.entityRepo.TargetByID(ctx, models.ScopeKindAd, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntityStatusActive, target.TargetStatus())

	t.Run("RejectedEntryCannotBeApproved", func(t *testing.T) {
		_, err := env.approval.Approve(ctx, entry.UUID, 42)
		assert.ErrorIs(t, err, ErrLogEntryNotPending)
	})
}

func TestApproveUnknownEntry(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()

	_, err := env.approval.Approve(ctx, uuid.New(), 42)
	assert.ErrorIs(t, err, ErrLogEntryNotFound)
}

func TestExpirePendingSweep(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()
	entry, _ := pendingPauseEntry(t, env)

	// Backdate the entry past the TTL.
	require.NoError(t, env.db.DB.Model(&models.AutomationLog{}).
		Where("id = ?", entry.ID).
		Update("created_at", utils.UTCNow().Add(-80*time.Hour)).Error)

	swept, err := env.approval.ExpirePending(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	updated, err := env.logRepo.ByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationLogStatusExpired, updated.Status)

	t.Run("ExpiredEntryCannotBeApproved", func(t *testing.T) {
		_, err := env.approval.Approve(ctx, entry.UUID, 42)
		assert.ErrorIs(t, err, ErrLogEntryNotPending)
	})
}

func TestPendingCount(t *testing.T) {
	env := newFlowEnv(t)
	ctx := testingutil.CreateTestContext()
	pendingPauseEntry(t, env)

	count, err := env.approval.PendingCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = env.approval.PendingCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
