package dto

import (
	"time"

	"github.com/arvand/adpilot/models"
)

// RuleConditionDTO describes the metric condition of a rule
type RuleConditionDTO struct {
	Metric       string  `json:"metric" validate:"required"`
	Operator     string  `json:"operator" validate:"required,oneof=> < >= <= = !="`
	Value        float64 `json:"value"`
	DurationDays int     `json:"duration_days" validate:"required,gte=1,lte=90"`
	Aggregation  string  `json:"aggregation" validate:"required,oneof=avg sum min max last"`
}

// RuleActionDTO describes the action a rule performs when it matches
type RuleActionDTO struct {
	Type   string         `json:"type" validate:"required,oneof=pause_ad resume_ad increase_budget decrease_budget duplicate_adset create_alert"`
	Params map[string]any `json:"params,omitempty"`
}

// CreateRuleRequest represents a rule creation request
type CreateRuleRequest struct {
	TenantID            uint             `json:"tenant_id" validate:"required"`
	Name                string           `json:"name" validate:"required,max=255"`
	ScopeKind           string           `json:"scope_kind" validate:"required,oneof=account campaign adset ad"`
	AccountFilterID     *uint            `json:"account_filter_id,omitempty"`
	TargetEntityID      *uint            `json:"target_entity_id,omitempty"`
	Condition           RuleConditionDTO `json:"condition" validate:"required"`
	Action              RuleActionDTO    `json:"action" validate:"required"`
	CooldownHours       int              `json:"cooldown_hours" validate:"gte=0"`
	MaxExecutionsPerDay int              `json:"max_executions_per_day" validate:"gte=0"`
	Priority            int              `json:"priority"`
	RequiresApproval    bool             `json:"requires_approval"`
}

// ToModel converts the request into a rule model
func (r *CreateRuleRequest) ToModel() *models.AutomationRule {
	return &models.AutomationRule{
		TenantID:        r.TenantID,
		Name:            r.Name,
		ScopeKind:       models.ScopeKind(r.ScopeKind),
		AccountFilterID: r.AccountFilterID,
		TargetEntityID:  r.TargetEntityID,
		Condition: models.RuleCondition{
			Metric:       r.Condition.Metric,
			Operator:     models.ConditionOperator(r.Condition.Operator),
			Threshold:    r.Condition.Value,
			DurationDays: r.Condition.DurationDays,
			Aggregation:  models.AggregationKind(r.Condition.Aggregation),
		},
		Action: models.ActionSpec{
			Type:   models.ActionType(r.Action.Type),
			Params: r.Action.Params,
		},
		CooldownHours:       r.CooldownHours,
		MaxExecutionsPerDay: r.MaxExecutionsPerDay,
		Priority:            r.Priority,
		IsActive:            true,
		RequiresApproval:    r.RequiresApproval,
	}
}

// UpdateRuleRequest represents a partial rule update. Nil fields are left
// untouched.
type UpdateRuleRequest struct {
	Name                *string           `json:"name,omitempty" validate:"omitempty,max=255"`
	Condition           *RuleConditionDTO `json:"condition,omitempty"`
	Action              *RuleActionDTO    `json:"action,omitempty"`
	CooldownHours       *int              `json:"cooldown_hours,omitempty" validate:"omitempty,gte=0"`
	MaxExecutionsPerDay *int              `json:"max_executions_per_day,omitempty" validate:"omitempty,gte=0"`
	Priority            *int              `json:"priority,omitempty"`
	IsActive            *bool             `json:"is_active,omitempty"`
	RequiresApproval    *bool             `json:"requires_approval,omitempty"`
}

// RuleResponse represents a rule in API responses
type RuleResponse struct {
	UUID                string           `json:"uuid"`
	TenantID            uint             `json:"tenant_id"`
	Name                string           `json:"name"`
	ScopeKind           string           `json:"scope_kind"`
	AccountFilterID     *uint            `json:"account_filter_id,omitempty"`
	TargetEntityID      *uint            `json:"target_entity_id,omitempty"`
	Condition           RuleConditionDTO `json:"condition"`
	Action              RuleActionDTO    `json:"action"`
	CooldownHours       int              `json:"cooldown_hours"`
	MaxExecutionsPerDay int              `json:"max_executions_per_day"`
	Priority            int              `json:"priority"`
	IsActive            bool             `json:"is_active"`
	RequiresApproval    bool             `json:"requires_approval"`
	LastExecutedAt      *time.Time       `json:"last_executed_at,omitempty"`
	ExecutionCount      int              `json:"execution_count"`
	ExecutionsToday     int              `json:"executions_today"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           *time.Time       `json:"updated_at,omitempty"`
}

// NewRuleResponse maps a rule model to its API shape
func NewRuleResponse(rule *models.AutomationRule) RuleResponse {
	return RuleResponse{
		UUID:            rule.UUID.String(),
		TenantID:        rule.TenantID,
		Name:            rule.Name,
		ScopeKind:       rule.ScopeKind.String(),
		AccountFilterID: rule.AccountFilterID,
		TargetEntityID:  rule.TargetEntityID,
		Condition: RuleConditionDTO{
			Metric:       rule.Condition.Metric,
			Operator:     rule.Condition.Operator.String(),
			Value:        rule.Condition.Threshold,
			DurationDays: rule.Condition.DurationDays,
			Aggregation:  rule.Condition.Aggregation.String(),
		},
		Action: RuleActionDTO{
			Type:   rule.Action.Type.String(),
			Params: rule.Action.Params,
		},
		CooldownHours:       rule.CooldownHours,
		MaxExecutionsPerDay: rule.MaxExecutionsPerDay,
		Priority:            rule.Priority,
		IsActive:            rule.IsActive,
		RequiresApproval:    rule.RequiresApproval,
		LastExecutedAt:      rule.LastExecutedAt,
		ExecutionCount:      rule.ExecutionCount,
		ExecutionsToday:     rule.ExecutionsToday,
		CreatedAt:           rule.CreatedAt,
		UpdatedAt:           rule.UpdatedAt,
	}
}

// NewRuleResponses maps a slice of rule models
func NewRuleResponses(rules []*models.AutomationRule) []RuleResponse {
	responses := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		responses = append(responses, NewRuleResponse(rule))
	}
	return responses
}
