package businessflow

import (
	"context"
	"fmt"

	"github.com/arvand/adpilot/app/services"
	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RollbackFlow reverses an executed entry by re-applying its previous state
// through the platform client. An entry rolls back at most once; a platform
// failure leaves the entry untouched so the rollback can be retried.
type RollbackFlow interface {
	Rollback(ctx context.Context, logUUID uuid.UUID, adminID uint) (*models.AutomationLog, error)
}

// RollbackFlowImpl implements RollbackFlow
type RollbackFlowImpl struct {
	db         *gorm.DB
	logRepo    repository.AutomationLogRepository
	entityRepo repository.AdEntityRepository
	platform   services.AdPlatformClient
}

// NewRollbackFlow creates a new rollback flow
func NewRollbackFlow(
	db *gorm.DB,
	logRepo repository.AutomationLogRepository,
	entityRepo repository.AdEntityRepository,
	platform services.AdPlatformClient,
) RollbackFlow {
	return &RollbackFlowImpl{
		db:         db,
		logRepo:    logRepo,
		entityRepo: entityRepo,
		platform:   platform,
	}
}

// Rollback re-applies the entry's previous state
func (f *RollbackFlowImpl) Rollback(ctx context.Context, logUUID uuid.UUID, adminID uint) (*models.AutomationLog, error) {
	entry, err := f.logRepo.ByUUID(ctx, logUUID)
	if err != nil {
		return nil, NewBusinessError("ROLLBACK_LOOKUP_FAILED", "failed to load audit entry", err)
	}
	if entry == nil {
		return nil, ErrLogEntryNotFound
	}

	if entry.RolledBackAt != nil {
		return nil, ErrAlreadyRolledBack
	}
	if !entry.IsRollbackable() {
		return nil, ErrNotRollbackable
	}
	if len(entry.PreviousState) == 0 {
		return nil, ErrPreviousStateEmpty
	}

	lockEntity(entry.EntityType, entry.EntityID)
	defer unlockEntity(entry.EntityType, entry.EntityID)

	var apply func(context.Context) error
	switch {
	case entry.ActionType.MutatesStatus():
		apply, err = f.revertStatus(ctx, entry)
	case entry.ActionType.MutatesBudget():
		apply, err = f.revertBudget(ctx, entry)
	default:
		return nil, ErrNotRollbackable
	}
	if err != nil {
		return nil, NewBusinessError("ROLLBACK_PLATFORM_FAILED", "failed to revert entry on the platform", err)
	}

	now := utils.UTCNow()
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := apply(txCtx); err != nil {
			return err
		}

		marked, err := f.logRepo.MarkRolledBack(txCtx, entry.ID, adminID, now)
		if err != nil {
			return err
		}
		if !marked {
			return ErrAlreadyRolledBack
		}

		return nil
	})
	if err != nil {
		if IsAlreadyRolledBack(err) {
			return nil, ErrAlreadyRolledBack
		}
		return nil, NewBusinessError("ROLLBACK_UPDATE_FAILED", "failed to record rollback", err)
	}

	entry.RolledBackAt = &now
	entry.RolledBackBy = &adminID

	return entry, nil
}

// revertStatus restores the previous delivery status on the platform
func (f *RollbackFlowImpl) revertStatus(ctx context.Context, entry *models.AutomationLog) (func(context.Context) error, error) {
	raw, ok := entry.PreviousState["status"].(string)
	if !ok {
		return nil, fmt.Errorf("previous state carries no status")
	}
	status := models.EntityStatus(raw)
	if !status.Valid() {
		return nil, fmt.Errorf("previous state carries invalid status %q", raw)
	}

	if err := f.platform.SetEntityStatus(ctx, entry.EntityType, entry.EntityExternalID, status); err != nil {
		return nil, err
	}

	return func(txCtx context.Context) error {
		return f.entityRepo.UpdateStatus(txCtx, entry.EntityType, entry.EntityID, status)
	}, nil
}

// revertBudget restores the previous budgets on the platform
func (f *RollbackFlowImpl) revertBudget(ctx context.Context, entry *models.AutomationLog) (func(context.Context) error, error) {
	daily := stateFloat(entry.PreviousState, "daily_budget")
	lifetime := stateFloat(entry.PreviousState, "lifetime_budget")
	if daily == nil && lifetime == nil {
		return nil, fmt.Errorf("previous state carries no budgets")
	}

	if err := f.platform.SetBudget(ctx, entry.EntityType, entry.EntityExternalID, daily, lifetime); err != nil {
		return nil, err
	}

	return func(txCtx context.Context) error {
		return f.entityRepo.UpdateBudget(txCtx, entry.EntityType, entry.EntityID, daily, lifetime)
	}, nil
}

// stateFloat reads a numeric field from a JSON state map
func stateFloat(state models.JSONBMap, key string) *float64 {
	if state == nil {
		return nil
	}
	if v, ok := state[key].(float64); ok {
		return &v
	}
	return nil
}
