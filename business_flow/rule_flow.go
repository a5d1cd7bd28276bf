package businessflow

import (
	"context"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
)

// RuleUpdate carries the fields an operator may change on a rule.
// Nil fields are left untouched.
type RuleUpdate struct {
	Name                *string
	Condition           *models.RuleCondition
	Action              *models.ActionSpec
	CooldownHours       *int
	MaxExecutionsPerDay *int
	Priority            *int
	IsActive            *bool
	RequiresApproval    *bool
}

// RuleFlow manages tenant automation rules
type RuleFlow interface {
	CreateRule(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error)
	GetRule(ctx context.Context, tenantID uint, ruleUUID uuid.UUID) (*models.AutomationRule, error)
	ListRules(ctx context.Context, filter models.AutomationRuleFilter, page, pageSize int) ([]*models.AutomationRule, int64, error)
	UpdateRule(ctx context.Context, tenantID uint, ruleUUID uuid.UUID, update RuleUpdate) (*models.AutomationRule, error)
	// DeactivateRule turns the rule off. Rules are never deleted so the
	// audit trail keeps resolving rule references.
	DeactivateRule(ctx context.Context, tenantID uint, ruleUUID uuid.UUID) (*models.AutomationRule, error)
}

// RuleFlowImpl implements RuleFlow
type RuleFlowImpl struct {
	ruleRepo repository.AutomationRuleRepository
}

// NewRuleFlow creates a new rule flow
func NewRuleFlow(ruleRepo repository.AutomationRuleRepository) RuleFlow {
	return &RuleFlowImpl{ruleRepo: ruleRepo}
}

// CreateRule validates and persists a new rule
func (f *RuleFlowImpl) CreateRule(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := f.ruleRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("RULE_CREATE_FAILED", "failed to create rule", err)
	}

	return rule, nil
}

// GetRule loads one rule scoped to the tenant
func (f *RuleFlowImpl) GetRule(ctx context.Context, tenantID uint, ruleUUID uuid.UUID) (*models.AutomationRule, error) {
	rule, err := f.ruleRepo.ByUUID(ctx, ruleUUID)
	if err != nil {
		return nil, NewBusinessError("RULE_LOOKUP_FAILED", "failed to load rule", err)
	}
	if rule == nil || rule.TenantID != tenantID {
		return nil, ErrRuleNotFound
	}

	return rule, nil
}

// ListRules returns a page of rules with the total count
func (f *RuleFlowImpl) ListRules(ctx context.Context, filter models.AutomationRuleFilter, page, pageSize int) ([]*models.AutomationRule, int64, error) {
	if page < 1 {
		return nil, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, 0, ErrInvalidPageSize
	}

	total, err := f.ruleRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, NewBusinessError("RULE_COUNT_FAILED", "failed to count rules", err)
	}

	rules, err := f.ruleRepo.ByFilter(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, NewBusinessError("RULE_LIST_FAILED", "failed to list rules", err)
	}

	return rules, total, nil
}

// UpdateRule applies the non-nil fields of the update
func (f *RuleFlowImpl) UpdateRule(ctx context.Context, tenantID uint, ruleUUID uuid.UUID, update RuleUpdate) (*models.AutomationRule, error) {
	if update.Name == nil && update.Condition == nil && update.Action == nil &&
		update.CooldownHours == nil && update.MaxExecutionsPerDay == nil &&
		update.Priority == nil && update.IsActive == nil && update.RequiresApproval == nil {
		return nil, ErrRuleUpdateRequired
	}

	rule, err := f.GetRule(ctx, tenantID, ruleUUID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		rule.Name = *update.Name
	}
	if update.Condition != nil {
		rule.Condition = *update.Condition
	}
	if update.Action != nil {
		rule.Action = *update.Action
	}
	if update.CooldownHours != nil {
		rule.CooldownHours = *update.CooldownHours
	}
	if update.MaxExecutionsPerDay != nil {
		rule.MaxExecutionsPerDay = *update.MaxExecutionsPerDay
	}
	if update.Priority != nil {
		rule.Priority = *update.Priority
	}
	if update.IsActive != nil {
		rule.IsActive = *update.IsActive
	}
	if update.RequiresApproval != nil {
		rule.RequiresApproval = *update.RequiresApproval
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := f.ruleRepo.Update(ctx, rule); err != nil {
		return nil, NewBusinessError("RULE_UPDATE_FAILED", "failed to update rule", err)
	}

	return rule, nil
}

// DeactivateRule turns the rule off
func (f *RuleFlowImpl) DeactivateRule(ctx context.Context, tenantID uint, ruleUUID uuid.UUID) (*models.AutomationRule, error) {
	inactive := false
	return f.UpdateRule(ctx, tenantID, ruleUUID, RuleUpdate{IsActive: &inactive})
}

// validateRule checks the rule's condition, action and scope compatibility
func validateRule(rule *models.AutomationRule) error {
	if rule.Name == "" {
		return ErrRuleNameRequired
	}
	if !rule.ScopeKind.Valid() {
		return ErrRuleScopeInvalid
	}
	if !models.ValidMetric(rule.Condition.Metric) {
		return ErrRuleMetricInvalid
	}
	if !rule.Condition.Operator.Valid() {
		return ErrRuleOperatorInvalid
	}
	if !rule.Condition.Aggregation.Valid() {
		return ErrRuleAggregationInvalid
	}
	if rule.Condition.DurationDays < 1 || rule.Condition.DurationDays > utils.MaxConditionWindowDays {
		return ErrRuleWindowInvalid
	}
	if !rule.Action.Type.Valid() {
		return ErrRuleActionInvalid
	}
	if rule.CooldownHours < 0 {
		return ErrRuleCooldownInvalid
	}

	// Budget actions need entities that carry budgets; duplication needs
	// ad sets.
	switch {
	case rule.Action.Type.MutatesBudget():
		if rule.ScopeKind != models.ScopeKindCampaign && rule.ScopeKind != models.ScopeKindAdSet {
			return ErrRuleActionScopeMismatch
		}
	case rule.Action.Type == models.ActionDuplicateAdSet:
		if rule.ScopeKind != models.ScopeKindAdSet {
			return ErrRuleActionScopeMismatch
		}
	}

	return nil
}
