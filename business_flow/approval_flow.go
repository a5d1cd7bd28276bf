package businessflow

import (
	"context"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
)

// ApprovalFlow is the human gate in front of rules flagged with
// requires_approval. Entries wait in pending until an operator decides or
// the TTL sweep expires them.
type ApprovalFlow interface {
	// Approve moves a pending entry to approved and executes it. Approving
	// the same entry twice executes it once; the second call fails with
	// ErrLogEntryNotPending.
	Approve(ctx context.Context, logUUID uuid.UUID, adminID uint) (*models.AutomationLog, error)
	// Reject terminally declines a pending entry. The platform is never
	// touched.
	Reject(ctx context.Context, logUUID uuid.UUID, adminID uint, reason *string) (*models.AutomationLog, error)
	PendingCount(ctx context.Context, tenantID uint) (int64, error)
	// ExpirePending sweeps pending entries older than the TTL into the
	// expired status, returning how many were swept.
	ExpirePending(ctx context.Context, ttl time.Duration) (int64, error)
}

// ApprovalFlowImpl implements ApprovalFlow
type ApprovalFlowImpl struct {
	logRepo  repository.AutomationLogRepository
	ruleRepo repository.AutomationRuleRepository
	executor ActionExecutor
}

// NewApprovalFlow creates a new approval flow
func NewApprovalFlow(
	logRepo repository.AutomationLogRepository,
	ruleRepo repository.AutomationRuleRepository,
	executor ActionExecutor,
) ApprovalFlow {
	return &ApprovalFlowImpl{
		logRepo:  logRepo,
		ruleRepo: ruleRepo,
		executor: executor,
	}
}

// Approve moves a pending entry to approved and executes it
func (f *ApprovalFlowImpl) Approve(ctx context.Context, logUUID uuid.UUID, adminID uint) (*models.AutomationLog, error) {
	entry, err := f.logRepo.ByUUID(ctx, logUUID)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_LOOKUP_FAILED", "failed to load audit entry", err)
	}
	if entry == nil {
		return nil, ErrLogEntryNotFound
	}

	now := utils.UTCNow()
	moved, err := f.logRepo.UpdateStatusIf(ctx, entry.ID,
		models.AutomationLogStatusPending, models.AutomationLogStatusApproved,
		map[string]any{
			"approved_by": adminID,
			"approved_at": now,
		})
	if err != nil {
		return nil, NewBusinessError("APPROVAL_UPDATE_FAILED", "failed to approve audit entry", err)
	}
	if !moved {
		return nil, ErrLogEntryNotPending
	}

	entry.Status = models.AutomationLogStatusApproved
	entry.ApprovedBy = &adminID
	entry.ApprovedAt = &now

	rule, err := f.ruleRepo.ByID(ctx, entry.RuleID)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_RULE_LOOKUP_FAILED", "failed to load rule", err)
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}

	if err := f.executor.ExecuteApproved(ctx, entry, rule); err != nil {
		return nil, NewBusinessError("APPROVAL_EXECUTION_FAILED", "failed to execute approved entry", err)
	}

	return entry, nil
}

// Reject terminally declines a pending entry
func (f *ApprovalFlowImpl) Reject(ctx context.Context, logUUID uuid.UUID, adminID uint, reason *string) (*models.AutomationLog, error) {
	entry, err := f.logRepo.ByUUID(ctx, logUUID)
	if err != nil {
		return nil, NewBusinessError("REJECTION_LOOKUP_FAILED", "failed to load audit entry", err)
	}
	if entry == nil {
		return nil, ErrLogEntryNotFound
	}

	now := utils.UTCNow()
	updates := map[string]any{
		"rejected_by": adminID,
		"rejected_at": now,
	}
	if reason != nil && *reason != "" {
		updates["error_message"] = *reason
	}

	moved, err := f.logRepo.UpdateStatusIf(ctx, entry.ID,
		models.AutomationLogStatusPending, models.AutomationLogStatusRejected, updates)
	if err != nil {
		return nil, NewBusinessError("REJECTION_UPDATE_FAILED", "failed to reject audit entry", err)
	}
	if !moved {
		return nil, ErrLogEntryNotPending
	}

	entry.Status = models.AutomationLogStatusRejected
	entry.RejectedBy = &adminID
	entry.RejectedAt = &now
	if reason != nil && *reason != "" {
		entry.ErrorMessage = reason
	}

	return entry, nil
}

// PendingCount returns how many entries await approval for the tenant
func (f *ApprovalFlowImpl) PendingCount(ctx context.Context, tenantID uint) (int64, error) {
	return f.logRepo.PendingCountByTenant(ctx, tenantID)
}

// ExpirePending sweeps pending entries older than the TTL
func (f *ApprovalFlowImpl) ExpirePending(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := utils.UTCNow().Add(-ttl)
	return f.logRepo.ExpirePending(ctx, cutoff)
}
