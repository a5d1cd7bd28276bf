package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// automationLogRepository implements AutomationLogRepository
type automationLogRepository struct {
	*BaseRepository[models.AutomationLog, models.AutomationLogFilter]
}

// NewAutomationLogRepository creates a new automation log repository instance
func NewAutomationLogRepository(db *gorm.DB) AutomationLogRepository {
	return &automationLogRepository{
		BaseRepository: NewBaseRepository[models.AutomationLog, models.AutomationLogFilter](db),
	}
}

// ByUUID retrieves a log entry by its UUID
func (r *automationLogRepository) ByUUID(ctx context.Context, id uuid.UUID) (*models.AutomationLog, error) {
	db := r.getDB(ctx)

	var entry models.AutomationLog
	err := db.Where("uuid = ?", id).Last(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find log entry by UUID %s: %w", id, err)
	}

	return &entry, nil
}

// ByFilter retrieves log entries based on filter criteria, newest first
func (r *automationLogRepository) ByFilter(ctx context.Context, filter models.AutomationLogFilter, limit, offset int) ([]*models.AutomationLog, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.AutomationLog{}), filter).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var entries []*models.AutomationLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to find log entries by filter: %w", err)
	}

	return entries, nil
}

// Count returns the number of log entries matching the filter
func (r *automationLogRepository) Count(ctx context.Context, filter models.AutomationLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.AutomationLog{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}

	return count, nil
}

// UpdateStatusIf moves the entry from one status to another together with
// the given column updates. The status guard makes concurrent transitions
// race-safe: only one caller observes a row change.
func (r *automationLogRepository) UpdateStatusIf(ctx context.Context, id uint, from, to models.AutomationLogStatus, updates map[string]any) (bool, error) {
	db := r.getDB(ctx)

	merged := map[string]any{"status": to}
	for k, v := range updates {
		merged[k] = v
	}

	result := db.Model(&models.AutomationLog{}).
		Where("id = ? AND status = ?", id, from).
		Updates(merged)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update log entry %d status %s -> %s: %w", id, from, to, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// MarkRolledBack stamps the rollback side fields. The guard ensures an entry
// is rolled back at most once and only when it is executed and reversible.
func (r *automationLogRepository) MarkRolledBack(ctx context.Context, id uint, adminID uint, at time.Time) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.AutomationLog{}).
		Where("id = ? AND status = ? AND can_rollback = ? AND rolled_back_at IS NULL",
			id, models.AutomationLogStatusExecuted, true).
		Updates(map[string]any{
			"rolled_back_at": at,
			"rolled_back_by": adminID,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark log entry %d rolled back: %w", id, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// PendingCountByTenant returns how many entries await approval for the tenant
func (r *automationLogRepository) PendingCountByTenant(ctx context.Context, tenantID uint) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.AutomationLog{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.AutomationLogStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries for tenant %d: %w", tenantID, err)
	}

	return count, nil
}

// ExpirePending sweeps pending entries created before the cutoff into the
// terminal expired status.
func (r *automationLogRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.AutomationLog{}).
		Where("status = ? AND created_at < ?", models.AutomationLogStatusPending, cutoff).
		Update("status", models.AutomationLogStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire pending entries: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *automationLogRepository) applyFilter(db *gorm.DB, filter models.AutomationLogFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.RuleID != nil {
		db = db.Where("rule_id = ?", *filter.RuleID)
	}
	if filter.EntityType != nil {
		db = db.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		db = db.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.ActionType != nil {
		db = db.Where("action_type = ?", *filter.ActionType)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Rollbackable != nil {
		if *filter.Rollbackable {
			db = db.Where("can_rollback = ? AND status = ? AND rolled_back_at IS NULL",
				true, models.AutomationLogStatusExecuted)
		} else {
			db = db.Where("can_rollback = ? OR status <> ? OR rolled_back_at IS NOT NULL",
				false, models.AutomationLogStatusExecuted)
		}
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
