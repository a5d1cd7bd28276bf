package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/utils"
	"gorm.io/gorm"
)

// adEntityRepository implements AdEntityRepository over the four entity mirrors
type adEntityRepository struct {
	db *gorm.DB
}

// NewAdEntityRepository creates a new ad entity repository instance
func NewAdEntityRepository(db *gorm.DB) AdEntityRepository {
	return &adEntityRepository{db: db}
}

// getDB returns the appropriate database connection (with or without transaction)
func (r *adEntityRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// modelFor returns a fresh model instance for the scope kind
func (r *adEntityRepository) modelFor(kind models.ScopeKind) (any, error) {
	switch kind {
	case models.ScopeKindAccount:
		return &models.AdAccount{}, nil
	case models.ScopeKindCampaign:
		return &models.AdCampaign{}, nil
	case models.ScopeKindAdSet:
		return &models.AdSet{}, nil
	case models.ScopeKindAd:
		return &models.Ad{}, nil
	default:
		return nil, fmt.Errorf("unknown scope kind: %s", kind)
	}
}

// ListTargets returns the active entities of the given kind, optionally
// narrowed to one account or pinned to a single entity.
func (r *adEntityRepository) ListTargets(ctx context.Context, tenantID uint, kind models.ScopeKind, accountFilterID, targetEntityID *uint) ([]models.AutomationTarget, error) {
	db := r.getDB(ctx)

	query := db.Where("tenant_id = ? AND status = ?", tenantID, models.EntityStatusActive)
	if targetEntityID != nil {
		query = query.Where("id = ?", *targetEntityID)
	}
	// Accounts carry no account_id column; the filter pins the account itself
	if accountFilterID != nil {
		if kind == models.ScopeKindAccount {
			query = query.Where("id = ?", *accountFilterID)
		} else {
			query = query.Where("account_id = ?", *accountFilterID)
		}
	}

	switch kind {
	case models.ScopeKindAccount:
		var rows []*models.AdAccount
		if err := query.Order("id ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list account targets: %w", err)
		}
		targets := make([]models.AutomationTarget, 0, len(rows))
		for _, row := range rows {
			targets = append(targets, row)
		}
		return targets, nil
	case models.ScopeKindCampaign:
		var rows []*models.AdCampaign
		if err := query.Order("id ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list campaign targets: %w", err)
		}
		targets := make([]models.AutomationTarget, 0, len(rows))
		for _, row := range rows {
			targets = append(targets, row)
		}
		return targets, nil
	case models.ScopeKindAdSet:
		var rows []*models.AdSet
		if err := query.Order("id ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list ad set targets: %w", err)
		}
		targets := make([]models.AutomationTarget, 0, len(rows))
		for _, row := range rows {
			targets = append(targets, row)
		}
		return targets, nil
	case models.ScopeKindAd:
		var rows []*models.Ad
		if err := query.Order("id ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list ad targets: %w", err)
		}
		targets := make([]models.AutomationTarget, 0, len(rows))
		for _, row := range rows {
			targets = append(targets, row)
		}
		return targets, nil
	default:
		return nil, fmt.Errorf("unknown scope kind: %s", kind)
	}
}

// TargetByID retrieves one entity of the given kind, or nil when not found
func (r *adEntityRepository) TargetByID(ctx context.Context, kind models.ScopeKind, id uint) (models.AutomationTarget, error) {
	db := r.getDB(ctx)

	var target models.AutomationTarget
	var err error
	switch kind {
	case models.ScopeKindAccount:
		var row models.AdAccount
		err = db.Last(&row, id).Error
		target = &row
	case models.ScopeKindCampaign:
		var row models.AdCampaign
		err = db.Last(&row, id).Error
		target = &row
	case models.ScopeKindAdSet:
		var row models.AdSet
		err = db.Last(&row, id).Error
		target = &row
	case models.ScopeKindAd:
		var row models.Ad
		err = db.Last(&row, id).Error
		target = &row
	default:
		return nil, fmt.Errorf("unknown scope kind: %s", kind)
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s %d: %w", kind, id, err)
	}

	return target, nil
}

// UpdateStatus sets the local delivery status of an entity
func (r *adEntityRepository) UpdateStatus(ctx context.Context, kind models.ScopeKind, id uint, status models.EntityStatus) error {
	db := r.getDB(ctx)

	model, err := r.modelFor(kind)
	if err != nil {
		return err
	}

	result := db.Model(model).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update %s %d status: %w", kind, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d not found", kind, id)
	}

	return nil
}

// UpdateBudget sets the local budgets of an entity. Only campaign and ad set
// mirrors carry budget columns.
func (r *adEntityRepository) UpdateBudget(ctx context.Context, kind models.ScopeKind, id uint, daily, lifetime *float64) error {
	db := r.getDB(ctx)

	if kind != models.ScopeKindCampaign && kind != models.ScopeKindAdSet {
		return fmt.Errorf("%s entities carry no budget", kind)
	}

	model, err := r.modelFor(kind)
	if err != nil {
		return err
	}

	updates := map[string]any{"updated_at": utils.UTCNow()}
	if daily != nil {
		updates["daily_budget"] = *daily
	}
	if lifetime != nil {
		updates["lifetime_budget"] = *lifetime
	}

	result := db.Model(model).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s %d budget: %w", kind, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d not found", kind, id)
	}

	return nil
}

// AdSetByID retrieves one ad set, or nil when not found
func (r *adEntityRepository) AdSetByID(ctx context.Context, id uint) (*models.AdSet, error) {
	db := r.getDB(ctx)

	var adSet models.AdSet
	err := db.Last(&adSet, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find ad set %d: %w", id, err)
	}

	return &adSet, nil
}

// SaveAdSet inserts a new ad set mirror (used for duplicated ad sets)
func (r *adEntityRepository) SaveAdSet(ctx context.Context, adSet *models.AdSet) error {
	db := r.getDB(ctx)

	if err := db.Create(adSet).Error; err != nil {
		return fmt.Errorf("failed to save ad set: %w", err)
	}

	return nil
}
