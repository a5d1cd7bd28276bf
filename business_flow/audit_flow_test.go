package businessflow

import (
	"bytes"
	"testing"

	"github.com/arvand/adpilot/models"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAuditFlowListAndGet(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewAuditFlow(env.logRepo, env.insightRepo)
	ctx := testingutil.CreateTestContext()

	var saved []*models.AutomationLog
	for i := 0; i < 3; i++ {
		entry := &models.AutomationLog{
			TenantID:   1,
			RuleID:     1,
			RuleName:   "Test Rule",
			EntityType: models.ScopeKindAd,
			EntityID:   uint(i + 1),
			ActionType: models.ActionPauseAd,
			Status:     models.AutomationLogStatusExecuted,
		}
		require.NoError(t, env.logRepo.Save(ctx, entry))
		saved = append(saved, entry)
	}

	t.Run("ListWithTotal", func(t *testing.T) {
		tenantID := uint(1)
		entries, total, err := flow.ListEntries(ctx, models.AutomationLogFilter{TenantID: &tenantID}, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, entries, 2)
	})

	t.Run("GetByUUID", func(t *testing.T) {
		entry, err := flow.GetEntry(ctx, saved[0].UUID)
		require.NoError(t, err)
		assert.Equal(t, saved[0].ID, entry.ID)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		_, err := flow.GetEntry(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrLogEntryNotFound)
	})
}

func TestAuditFlowExportXLSX(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewAuditFlow(env.logRepo, env.insightRepo)
	ctx := testingutil.CreateTestContext()

	entry := &models.AutomationLog{
		TenantID:      1,
		RuleID:        1,
		RuleName:      "Scale winners",
		EntityType:    models.ScopeKindCampaign,
		EntityID:      1,
		EntityName:    "Summer Sale",
		ActionType:    models.ActionIncreaseBudget,
		Status:        models.AutomationLogStatusExecuted,
		PreviousState: models.JSONBMap{"daily_budget": 100.0},
		NewState:      models.JSONBMap{"daily_budget": 120.0},
	}
	require.NoError(t, env.logRepo.Save(ctx, entry))

	tenantID := uint(1)
	data, err := flow.ExportXLSX(ctx, models.AutomationLogFilter{TenantID: &tenantID})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows("Automation Log")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "UUID", rows[0][0])
	assert.Equal(t, "Scale winners", rows[1][2])
	assert.Equal(t, "increase_budget", rows[1][6])
}
