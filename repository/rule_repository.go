package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// automationRuleRepository implements AutomationRuleRepository
type automationRuleRepository struct {
	*BaseRepository[models.AutomationRule, models.AutomationRuleFilter]
}

// NewAutomationRuleRepository creates a new automation rule repository instance
func NewAutomationRuleRepository(db *gorm.DB) AutomationRuleRepository {
	return &automationRuleRepository{
		BaseRepository: NewBaseRepository[models.AutomationRule, models.AutomationRuleFilter](db),
	}
}

// ByUUID retrieves a rule by its UUID
func (r *automationRuleRepository) ByUUID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	db := r.getDB(ctx)

	var rule models.AutomationRule
	err := db.Where("uuid = ?", id).Last(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find rule by UUID %s: %w", id, err)
	}

	return &rule, nil
}

// ByFilter retrieves rules based on filter criteria
func (r *automationRuleRepository) ByFilter(ctx context.Context, filter models.AutomationRuleFilter, limit, offset int) ([]*models.AutomationRule, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.AutomationRule{}), filter).
		Order("priority DESC, created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rules []*models.AutomationRule
	if err := query.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to find rules by filter: %w", err)
	}

	return rules, nil
}

// Count returns the number of rules matching the filter
func (r *automationRuleRepository) Count(ctx context.Context, filter models.AutomationRuleFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.AutomationRule{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}

	return count, nil
}

// Update persists all fields of an existing rule
func (r *automationRuleRepository) Update(ctx context.Context, rule *models.AutomationRule) error {
	db := r.getDB(ctx)

	if err := db.Save(rule).Error; err != nil {
		return fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}

	return nil
}

// ListActiveByTenant returns the tenant's active rules ordered by priority
// descending, ties broken by creation time.
func (r *automationRuleRepository) ListActiveByTenant(ctx context.Context, tenantID uint) ([]*models.AutomationRule, error) {
	db := r.getDB(ctx)

	var rules []*models.AutomationRule
	err := db.Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules for tenant %d: %w", tenantID, err)
	}

	return rules, nil
}

// ActiveTenantIDs returns the distinct tenants that have at least one active rule
func (r *automationRuleRepository) ActiveTenantIDs(ctx context.Context) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.AutomationRule{}).
		Where("is_active = ?", true).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenant IDs: %w", err)
	}

	return ids, nil
}

// StartCooldown stamps last_executed_at and bumps the execution counters.
// The WHERE clause is guarded on the last_executed_at value the caller
// observed, so the update applies at most once per execution.
func (r *automationRuleRepository) StartCooldown(ctx context.Context, rule *models.AutomationRule, now time.Time) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"last_executed_at": now,
		"execution_count":  gorm.Expr("execution_count + 1"),
	}
	if rule.ExecutionDay != nil && utils.SameUTCDay(*rule.ExecutionDay, now) {
		updates["executions_today"] = gorm.Expr("executions_today + 1")
	} else {
		// First execution of a new UTC day resets the daily counter
		updates["executions_today"] = 1
		updates["execution_day"] = utils.UTCDate(now)
	}

	query := db.Model(&models.AutomationRule{}).Where("id = ?", rule.ID)
	if rule.LastExecutedAt == nil {
		query = query.Where("last_executed_at IS NULL")
	} else {
		query = query.Where("last_executed_at = ?", *rule.LastExecutedAt)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to start cooldown for rule %d: %w", rule.ID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *automationRuleRepository) applyFilter(db *gorm.DB, filter models.AutomationRuleFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.ScopeKind != nil {
		db = db.Where("scope_kind = ?", *filter.ScopeKind)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.RequiresApproval != nil {
		db = db.Where("requires_approval = ?", *filter.RequiresApproval)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
