package businessflow

import (
	"context"
	"fmt"

	"github.com/arvand/adpilot/app/services"
	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
	"gorm.io/gorm"
)

// ActionExecutor turns a matched rule×entity into an audit log entry and
// carries the action out against the ad platform.
type ActionExecutor interface {
	// ExecuteForMatch creates the audit entry for a match and executes it
	// immediately unless the rule requires approval. The returned entry
	// reflects the final status; execution failures are recorded on the
	// entry, not returned as errors.
	ExecuteForMatch(ctx context.Context, rule *models.AutomationRule, target models.AutomationTarget) (*models.AutomationLog, error)
	// ExecuteApproved runs an entry that has passed the approval gate.
	ExecuteApproved(ctx context.Context, entry *models.AutomationLog, rule *models.AutomationRule) error
}

// actionResult is what a handler produces on a successful platform call
type actionResult struct {
	newState models.JSONBMap
	// apply mutates the local mirror inside the success transaction
	apply func(context.Context) error
}

// actionHandler executes one action type against the platform
type actionHandler func(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget) (*actionResult, error)

// ActionExecutorImpl implements ActionExecutor
type ActionExecutorImpl struct {
	db          *gorm.DB
	ruleRepo    repository.AutomationRuleRepository
	logRepo     repository.AutomationLogRepository
	entityRepo  repository.AdEntityRepository
	metricRepo  repository.MetricSnapshotRepository
	platform    services.AdPlatformClient
	insightSink services.InsightSink
	handlers    map[models.ActionType]actionHandler
}

// NewActionExecutor creates a new action executor
func NewActionExecutor(
	db *gorm.DB,
	ruleRepo repository.AutomationRuleRepository,
	logRepo repository.AutomationLogRepository,
	entityRepo repository.AdEntityRepository,
	metricRepo repository.MetricSnapshotRepository,
	platform services.AdPlatformClient,
	insightSink services.InsightSink,
) ActionExecutor {
	e := &ActionExecutorImpl{
		db:          db,
		ruleRepo:    ruleRepo,
		logRepo:     logRepo,
		entityRepo:  entityRepo,
		metricRepo:  metricRepo,
		platform:    platform,
		insightSink: insightSink,
	}

	// Closed dispatch table: unknown action types never reach the platform
	e.handlers = map[models.ActionType]actionHandler{
		models.ActionPauseAd:        e.executePause,
		models.ActionResumeAd:       e.executeResume,
		models.ActionIncreaseBudget: e.executeBudgetChange,
		models.ActionDecreaseBudget: e.executeBudgetChange,
		models.ActionDuplicateAdSet: e.executeDuplicateAdSet,
		models.ActionCreateAlert:    e.executeCreateAlert,
	}

	return e
}

// ExecuteForMatch creates the audit entry and executes it unless the rule
// requires approval.
func (e *ActionExecutorImpl) ExecuteForMatch(ctx context.Context, rule *models.AutomationRule, target models.AutomationTarget) (*models.AutomationLog, error) {
	entry := &models.AutomationLog{
		TenantID:         rule.TenantID,
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		EntityType:       target.TargetKind(),
		EntityID:         target.TargetID(),
		EntityName:       target.TargetName(),
		EntityExternalID: target.TargetExternalID(),
		ActionType:       rule.Action.Type,
		ActionParams:     models.JSONBMap(rule.Action.Params),
		Status:           models.AutomationLogStatusPending,
		CanRollback:      rule.Action.Type.Rollbackable(),
	}

	if snapshot, err := e.metricRepo.LatestHeadline(ctx, target.TargetKind(), target.TargetID()); err == nil && snapshot != nil {
		entry.MetricsSnapshot = snapshot.Headline()
	}

	// Unknown action types are recorded as failed without a platform call
	if !rule.Action.Type.Valid() {
		msg := fmt.Sprintf("%s: %s", ErrActionUnsupported.Error(), rule.Action.Type)
		entry.Status = models.AutomationLogStatusFailed
		entry.ErrorMessage = &msg
		entry.CanRollback = false
		if err := e.logRepo.Save(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to record unsupported action: %w", err)
		}
		return entry, nil
	}

	previousState, err := buildPreviousState(rule.Action.Type, target)
	if err != nil {
		// A budget action on an entity without budgets cannot execute
		msg := err.Error()
		entry.Status = models.AutomationLogStatusFailed
		entry.ErrorMessage = &msg
		entry.CanRollback = false
		if saveErr := e.logRepo.Save(ctx, entry); saveErr != nil {
			return nil, fmt.Errorf("failed to record inapplicable action: %w", saveErr)
		}
		return entry, nil
	}
	entry.PreviousState = previousState

	if err := e.logRepo.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create audit entry: %w", err)
	}

	if rule.RequiresApproval {
		return entry, nil
	}

	e.execute(ctx, entry, rule, target)
	return entry, nil
}

// ExecuteApproved runs an entry that has passed the approval gate
func (e *ActionExecutorImpl) ExecuteApproved(ctx context.Context, entry *models.AutomationLog, rule *models.AutomationRule) error {
	target, err := e.entityRepo.TargetByID(ctx, entry.EntityType, entry.EntityID)
	if err != nil {
		return err
	}
	if target == nil {
		e.markFailed(ctx, entry, ErrTargetNotFound)
		return nil
	}

	e.execute(ctx, entry, rule, target)
	return nil
}

// execute runs the entry's action. Platform failures are recorded on the
// entry; the rule cooldown starts only when execution succeeds.
func (e *ActionExecutorImpl) execute(ctx context.Context, entry *models.AutomationLog, rule *models.AutomationRule, target models.AutomationTarget) {
	handler, ok := e.handlers[entry.ActionType]
	if !ok {
		e.markFailed(ctx, entry, fmt.Errorf("%w: %s", ErrActionUnsupported, entry.ActionType))
		return
	}

	lockEntity(entry.EntityType, entry.EntityID)
	defer unlockEntity(entry.EntityType, entry.EntityID)

	result, err := handler(ctx, entry, target)
	if err != nil {
		e.markFailed(ctx, entry, err)
		return
	}

	now := utils.UTCNow()
	fromStatus := entry.Status

	err = repository.WithTransaction(ctx, e.db, func(txCtx context.Context) error {
		if result.apply != nil {
			if err := result.apply(txCtx); err != nil {
				return err
			}
		}

		updates := map[string]any{"executed_at": now}
		if result.newState != nil {
			updates["new_state"] = result.newState
		}
		moved, err := e.logRepo.UpdateStatusIf(txCtx, entry.ID, fromStatus, models.AutomationLogStatusExecuted, updates)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("audit entry %d left status %s concurrently", entry.ID, fromStatus)
		}

		// A lost cooldown race means another worker already recorded an
		// execution for this rule; the entry itself still succeeded.
		if _, err := e.ruleRepo.StartCooldown(txCtx, rule, now); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		e.markFailed(ctx, entry, err)
		return
	}

	entry.Status = models.AutomationLogStatusExecuted
	entry.NewState = result.newState
	entry.ExecutedAt = &now

	rule.LastExecutedAt = &now
	rule.ExecutionCount++
	if rule.ExecutionDay != nil && utils.SameUTCDay(*rule.ExecutionDay, now) {
		rule.ExecutionsToday++
	} else {
		rule.ExecutionsToday = 1
		rule.ExecutionDay = utils.ToPtr(utils.UTCDate(now))
	}
}

// markFailed moves the entry to the failed status and records the cause
func (e *ActionExecutorImpl) markFailed(ctx context.Context, entry *models.AutomationLog, cause error) {
	msg := cause.Error()
	if _, err := e.logRepo.UpdateStatusIf(ctx, entry.ID, entry.Status, models.AutomationLogStatusFailed,
		map[string]any{"error_message": msg}); err != nil {
		return
	}
	entry.Status = models.AutomationLogStatusFailed
	entry.ErrorMessage = &msg
}

// buildPreviousState captures the fields the action is allowed to mutate
func buildPreviousState(action models.ActionType, target models.AutomationTarget) (models.JSONBMap, error) {
	switch {
	case action.MutatesStatus():
		return models.JSONBMap{"status": target.TargetStatus().String()}, nil
	case action.MutatesBudget():
		daily, lifetime := target.BudgetValues()
		if daily == nil && lifetime == nil {
			return nil, ErrTargetNoBudget
		}
		state := models.JSONBMap{}
		if daily != nil {
			state["daily_budget"] = *daily
		}
		if lifetime != nil {
			state["lifetime_budget"] = *lifetime
		}
		return state, nil
	default:
		return nil, nil
	}
}

// executePause pauses delivery of the target entity
func (e *ActionExecutorImpl) executePause(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget) (*actionResult, error) {
	return e.executeSetStatus(ctx, entry, target, models.EntityStatusPaused)
}

// executeResume resumes delivery of the target entity
func (e *ActionExecutorImpl) executeResume(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget) (*actionResult, error) {
	return e.executeSetStatus(ctx, entry, target, models.EntityStatusActive)
}

func (e *ActionExecutorImpl) executeSetStatus(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget, status models.EntityStatus) (*actionResult, error) {
	if err := e.platform.SetEntityStatus(ctx, entry.EntityType, entry.EntityExternalID, status); err != nil {
		return nil, err
	}

	return &actionResult{
		newState: models.JSONBMap{"status": status.String()},
		apply: func(txCtx context.Context) error {
			return e.entityRepo.UpdateStatus(txCtx, entry.EntityType, entry.EntityID, status)
		},
	}, nil
}

// executeBudgetChange scales whichever budgets the entity carries by the
// configured percentage and rounds to whole cents.
func (e *ActionExecutorImpl) executeBudgetChange(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget) (*actionResult, error) {
	daily, lifetime := target.BudgetValues()
	if daily == nil && lifetime == nil {
		return nil, ErrTargetNoBudget
	}

	spec := models.ActionSpec{Type: entry.ActionType, Params: entry.ActionParams}
	var factor float64
	if entry.ActionType == models.ActionIncreaseBudget {
		factor = 1 + spec.PercentParam(utils.DefaultBudgetIncreasePercent)/100
	} else {
		factor = 1 - spec.PercentParam(utils.DefaultBudgetDecreasePercent)/100
	}
	if factor <= 0 {
		return nil, fmt.Errorf("budget decrease of %.2f%% would not leave a positive budget", (1-factor)*100)
	}

	var newDaily, newLifetime *float64
	newState := models.JSONBMap{}
	if daily != nil {
		newDaily = utils.ToPtr(utils.RoundMoney(*daily * factor))
		newState["daily_budget"] = *newDaily
	}
	if lifetime != nil {
		newLifetime = utils.ToPtr(utils.RoundMoney(*lifetime * factor))
		newState["lifetime_budget"] = *newLifetime
	}

	if err := e.platform.SetBudget(ctx, entry.EntityType, entry.EntityExternalID, newDaily, newLifetime); err != nil {
		return nil, err
	}

	return &actionResult{
		newState: newState,
		apply: func(txCtx context.Context) error {
			return e.entityRepo.UpdateBudget(txCtx, entry.EntityType, entry.EntityID, newDaily, newLifetime)
		},
	}, nil
}

// executeDuplicateAdSet clones the ad set on the platform and mirrors the
// copy locally. Duplicates start paused.
func (e *ActionExecutorImpl) executeDuplicateAdSet(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget) (*actionResult, error) {
	if entry.EntityType != models.ScopeKindAdSet {
		return nil, fmt.Errorf("duplicate_adset applies to ad sets, got %s", entry.EntityType)
	}

	source, err := e.entityRepo.AdSetByID(ctx, entry.EntityID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrTargetNotFound
	}

	spec := models.ActionSpec{Type: entry.ActionType, Params: entry.ActionParams}
	newName := source.Name + spec.StringParam("name_suffix", " (copy)")

	newExternalID, err := e.platform.DuplicateAdSet(ctx, source.ExternalID, newName)
	if err != nil {
		return nil, err
	}

	duplicate := &models.AdSet{
		TenantID:         source.TenantID,
		AccountID:        source.AccountID,
		CampaignID:       source.CampaignID,
		ExternalID:       newExternalID,
		Name:             newName,
		Status:           models.EntityStatusPaused,
		OptimizationGoal: source.OptimizationGoal,
		Targeting:        source.Targeting,
		DailyBudget:      source.DailyBudget,
		LifetimeBudget:   source.LifetimeBudget,
	}

	return &actionResult{
		newState: models.JSONBMap{
			"duplicated_adset_external_id": newExternalID,
			"duplicated_adset_name":        newName,
		},
		apply: func(txCtx context.Context) error {
			return e.entityRepo.SaveAdSet(txCtx, duplicate)
		},
	}, nil
}

// executeCreateAlert emits an insight row instead of touching the platform
func (e *ActionExecutorImpl) executeCreateAlert(ctx context.Context, entry *models.AutomationLog, target models.AutomationTarget) (*actionResult, error) {
	spec := models.ActionSpec{Type: entry.ActionType, Params: entry.ActionParams}

	severity := models.InsightSeverity(spec.StringParam("severity", models.InsightSeverityWarning.String()))
	if !severity.Valid() {
		severity = models.InsightSeverityWarning
	}

	insight := &models.Insight{
		TenantID:       entry.TenantID,
		RuleID:         &entry.RuleID,
		Severity:       severity,
		Title:          spec.StringParam("title", fmt.Sprintf("Rule %q matched", entry.RuleName)),
		Message:        spec.StringParam("message", fmt.Sprintf("Rule %q matched %s %q", entry.RuleName, entry.EntityType, entry.EntityName)),
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		CorrelationIDs: []string{entry.UUID.String()},
	}

	return &actionResult{
		newState: models.JSONBMap{"insight_severity": severity.String()},
		apply: func(txCtx context.Context) error {
			return e.insightSink.CreateAlert(txCtx, insight)
		},
	}, nil
}
