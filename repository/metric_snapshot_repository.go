package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/utils"
	"gorm.io/gorm"
)

// metricSnapshotRepository implements MetricSnapshotRepository
type metricSnapshotRepository struct {
	*BaseRepository[models.MetricSnapshot, any]
}

// NewMetricSnapshotRepository creates a new metric snapshot repository instance
func NewMetricSnapshotRepository(db *gorm.DB) MetricSnapshotRepository {
	return &metricSnapshotRepository{
		BaseRepository: NewBaseRepository[models.MetricSnapshot, any](db),
	}
}

// Aggregate folds one metric over the trailing window of full UTC days.
// The window is [today-days, today): the current partial day is excluded so
// rules compare complete days only.
func (r *metricSnapshotRepository) Aggregate(ctx context.Context, entityType models.ScopeKind, entityID uint, metric string, days int, agg models.AggregationKind) (float64, int64, error) {
	db := r.getDB(ctx)

	column, ok := models.MetricColumns[metric]
	if !ok {
		return 0, 0, fmt.Errorf("unknown metric: %s", metric)
	}
	if !agg.Valid() {
		return 0, 0, fmt.Errorf("unknown aggregation: %s", agg)
	}
	if days <= 0 {
		return 0, 0, fmt.Errorf("window must be at least one day, got %d", days)
	}

	windowEnd := utils.UTCDate(utils.UTCNow())
	windowStart := windowEnd.AddDate(0, 0, -days)

	scoped := db.Model(&models.MetricSnapshot{}).
		Where("entity_type = ? AND entity_id = ? AND date >= ? AND date < ?",
			entityType, entityID, windowStart, windowEnd)

	if agg == models.AggregationLast {
		var count int64
		if err := scoped.Count(&count).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to count snapshots: %w", err)
		}
		if count == 0 {
			return 0, 0, nil
		}

		var value float64
		err := db.Model(&models.MetricSnapshot{}).
			Select(column).
			Where("entity_type = ? AND entity_id = ? AND date >= ? AND date < ?",
				entityType, entityID, windowStart, windowEnd).
			Order("date DESC").
			Limit(1).
			Scan(&value).Error
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read last snapshot value: %w", err)
		}
		return value, count, nil
	}

	var sqlFn string
	switch agg {
	case models.AggregationAvg:
		sqlFn = "AVG"
	case models.AggregationSum:
		sqlFn = "SUM"
	case models.AggregationMin:
		sqlFn = "MIN"
	case models.AggregationMax:
		sqlFn = "MAX"
	}

	var row struct {
		Value   *float64
		Samples int64
	}
	err := scoped.
		Select(fmt.Sprintf("%s(%s) AS value, COUNT(*) AS samples", sqlFn, column)).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate %s(%s): %w", agg, metric, err)
	}

	if row.Value == nil {
		return 0, row.Samples, nil
	}
	return *row.Value, row.Samples, nil
}

// LatestHeadline returns the most recent snapshot row for the entity
func (r *metricSnapshotRepository) LatestHeadline(ctx context.Context, entityType models.ScopeKind, entityID uint) (*models.MetricSnapshot, error) {
	db := r.getDB(ctx)

	var snapshot models.MetricSnapshot
	err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("date DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}

	return &snapshot, nil
}
