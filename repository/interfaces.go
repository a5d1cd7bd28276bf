package repository

import (
	"context"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// TxContextKey is the context key for database transactions
const TxContextKey contextKey = "tx"

// AutomationRuleRepository defines operations for automation rules
type AutomationRuleRepository interface {
	ByID(ctx context.Context, id uint) (*models.AutomationRule, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	ByFilter(ctx context.Context, filter models.AutomationRuleFilter, limit, offset int) ([]*models.AutomationRule, error)
	Count(ctx context.Context, filter models.AutomationRuleFilter) (int64, error)
	Save(ctx context.Context, rule *models.AutomationRule) error
	Update(ctx context.Context, rule *models.AutomationRule) error
	// ListActiveByTenant returns active rules ordered by priority descending
	ListActiveByTenant(ctx context.Context, tenantID uint) ([]*models.AutomationRule, error)
	ActiveTenantIDs(ctx context.Context) ([]uint, error)
	// StartCooldown conditionally stamps the rule's last execution and bumps
	// its counters. The update is guarded on the previously observed
	// last_executed_at so concurrent workers cannot both start the same
	// cooldown. Returns false when another worker won the race.
	StartCooldown(ctx context.Context, rule *models.AutomationRule, now time.Time) (bool, error)
}

// AutomationLogRepository defines operations for the automation audit trail
type AutomationLogRepository interface {
	ByID(ctx context.Context, id uint) (*models.AutomationLog, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.AutomationLog, error)
	ByFilter(ctx context.Context, filter models.AutomationLogFilter, limit, offset int) ([]*models.AutomationLog, error)
	Count(ctx context.Context, filter models.AutomationLogFilter) (int64, error)
	Save(ctx context.Context, entry *models.AutomationLog) error
	// UpdateStatusIf moves the entry from one status to another together
	// with the given column updates, guarded on the current status.
	// Returns false when the entry was not in the expected status.
	UpdateStatusIf(ctx context.Context, id uint, from, to models.AutomationLogStatus, updates map[string]any) (bool, error)
	// MarkRolledBack stamps the rollback side fields at most once.
	MarkRolledBack(ctx context.Context, id uint, adminID uint, at time.Time) (bool, error)
	PendingCountByTenant(ctx context.Context, tenantID uint) (int64, error)
	// ExpirePending moves pending entries created before the cutoff to the
	// expired status, returning how many were swept.
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// MetricSnapshotRepository defines read access to daily performance metrics
type MetricSnapshotRepository interface {
	Save(ctx context.Context, snapshot *models.MetricSnapshot) error
	SaveBatch(ctx context.Context, snapshots []*models.MetricSnapshot) error
	// Aggregate folds the metric over the trailing window of full UTC days
	// ending yesterday. samples is the number of snapshot rows found; the
	// caller decides what an empty window means per aggregation kind.
	Aggregate(ctx context.Context, entityType models.ScopeKind, entityID uint, metric string, days int, agg models.AggregationKind) (value float64, samples int64, err error)
	// LatestHeadline returns the most recent snapshot row for the entity,
	// or nil when none exists.
	LatestHeadline(ctx context.Context, entityType models.ScopeKind, entityID uint) (*models.MetricSnapshot, error)
}

// AdEntityRepository resolves and mutates local mirrors of platform entities
type AdEntityRepository interface {
	// ListTargets returns the active entities of the given kind a rule may
	// act on, optionally narrowed to one account or pinned to one entity.
	ListTargets(ctx context.Context, tenantID uint, kind models.ScopeKind, accountFilterID, targetEntityID *uint) ([]models.AutomationTarget, error)
	TargetByID(ctx context.Context, kind models.ScopeKind, id uint) (models.AutomationTarget, error)
	UpdateStatus(ctx context.Context, kind models.ScopeKind, id uint, status models.EntityStatus) error
	UpdateBudget(ctx context.Context, kind models.ScopeKind, id uint, daily, lifetime *float64) error
	AdSetByID(ctx context.Context, id uint) (*models.AdSet, error)
	SaveAdSet(ctx context.Context, adSet *models.AdSet) error
}

// InsightRepository defines operations for insights
type InsightRepository interface {
	Save(ctx context.Context, insight *models.Insight) error
	ByFilter(ctx context.Context, filter models.InsightFilter, limit, offset int) ([]*models.Insight, error)
	Count(ctx context.Context, filter models.InsightFilter) (int64, error)
}

// AdminRepository defines operations for admin operator accounts
type AdminRepository interface {
	ByID(ctx context.Context, id uint) (*models.Admin, error)
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	Save(ctx context.Context, admin *models.Admin) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
}
