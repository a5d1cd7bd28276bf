package repository

import (
	"context"
	"fmt"

	"github.com/arvand/adpilot/models"
	"gorm.io/gorm"
)

// insightRepository implements InsightRepository
type insightRepository struct {
	*BaseRepository[models.Insight, models.InsightFilter]
}

// NewInsightRepository creates a new insight repository instance
func NewInsightRepository(db *gorm.DB) InsightRepository {
	return &insightRepository{
		BaseRepository: NewBaseRepository[models.Insight, models.InsightFilter](db),
	}
}

// ByFilter retrieves insights based on filter criteria, newest first
func (r *insightRepository) ByFilter(ctx context.Context, filter models.InsightFilter, limit, offset int) ([]*models.Insight, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Insight{}), filter).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var insights []*models.Insight
	if err := query.Find(&insights).Error; err != nil {
		return nil, fmt.Errorf("failed to find insights by filter: %w", err)
	}

	return insights, nil
}

// Count returns the number of insights matching the filter
func (r *insightRepository) Count(ctx context.Context, filter models.InsightFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.Insight{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count insights: %w", err)
	}

	return count, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *insightRepository) applyFilter(db *gorm.DB, filter models.InsightFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.RuleID != nil {
		db = db.Where("rule_id = ?", *filter.RuleID)
	}
	if filter.Severity != nil {
		db = db.Where("severity = ?", *filter.Severity)
	}
	if filter.EntityType != nil {
		db = db.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		db = db.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
