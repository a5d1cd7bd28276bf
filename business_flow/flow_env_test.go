package businessflow

import (
	"io"
	"log"
	"testing"

	"github.com/arvand/adpilot/app/services"
	"github.com/arvand/adpilot/repository"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/stretchr/testify/require"
)

// flowEnv wires the flows against an in-memory database and a mock platform
type flowEnv struct {
	db          *testingutil.TestDB
	fixtures    *testingutil.TestFixtures
	platform    *services.MockAdPlatformClient
	ruleRepo    repository.AutomationRuleRepository
	logRepo     repository.AutomationLogRepository
	entityRepo  repository.AdEntityRepository
	metricRepo  repository.MetricSnapshotRepository
	insightRepo repository.InsightRepository
	executor    ActionExecutor
	evaluation  EvaluationFlow
	approval    ApprovalFlow
	rollback    RollbackFlow
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()

	db, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	platform := services.NewMockAdPlatformClient()
	ruleRepo := repository.NewAutomationRuleRepository(db.DB)
	logRepo := repository.NewAutomationLogRepository(db.DB)
	entityRepo := repository.NewAdEntityRepository(db.DB)
	metricRepo := repository.NewMetricSnapshotRepository(db.DB)
	insightRepo := repository.NewInsightRepository(db.DB)

	executor := NewActionExecutor(db.DB, ruleRepo, logRepo, entityRepo, metricRepo, platform, services.NewInsightSink(insightRepo))
	evaluation := NewEvaluationFlow(ruleRepo, entityRepo, metricRepo, services.NewNoopCacheService(), executor, log.New(io.Discard, "", 0))

	return &flowEnv{
		db:          db,
		fixtures:    testingutil.NewTestFixtures(db),
		platform:    platform,
		ruleRepo:    ruleRepo,
		logRepo:     logRepo,
		entityRepo:  entityRepo,
		metricRepo:  metricRepo,
		insightRepo: insightRepo,
		executor:    executor,
		evaluation:  evaluation,
		approval:    NewApprovalFlow(logRepo, ruleRepo, executor),
		rollback:    NewRollbackFlow(db.DB, logRepo, entityRepo, platform),
	}
}
