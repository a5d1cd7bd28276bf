package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScopeKind represents the kind of advertising entity a rule targets
type ScopeKind string

const (
	ScopeKindAccount  ScopeKind = "account"
	ScopeKindCampaign ScopeKind = "campaign"
	ScopeKindAdSet    ScopeKind = "adset"
	ScopeKindAd       ScopeKind = "ad"
)

// String returns the string representation of the scope kind
func (s ScopeKind) String() string {
	return string(s)
}

// Valid checks if the scope kind is valid
func (s ScopeKind) Valid() bool {
	switch s {
	case ScopeKindAccount, ScopeKindCampaign, ScopeKindAdSet, ScopeKindAd:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ScopeKind
func (s *ScopeKind) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ScopeKind(v)
	case []byte:
		*s = ScopeKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScopeKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ScopeKind
func (s ScopeKind) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ScopeKind: %s", s)
	}
	return string(s), nil
}

// AggregationKind represents how daily metric values are folded over a window
type AggregationKind string

const (
	AggregationAvg  AggregationKind = "avg"
	AggregationSum  AggregationKind = "sum"
	AggregationMin  AggregationKind = "min"
	AggregationMax  AggregationKind = "max"
	AggregationLast AggregationKind = "last"
)

// String returns the string representation of the aggregation kind
func (a AggregationKind) String() string {
	return string(a)
}

// Valid checks if the aggregation kind is valid
func (a AggregationKind) Valid() bool {
	switch a {
	case AggregationAvg, AggregationSum, AggregationMin, AggregationMax, AggregationLast:
		return true
	default:
		return false
	}
}

// ZeroOnEmpty reports whether an empty window aggregates to zero.
// min, max and last have no meaningful value over zero samples.
func (a AggregationKind) ZeroOnEmpty() bool {
	return a == AggregationSum || a == AggregationAvg
}

// ConditionOperator represents the comparison applied to an aggregated metric
type ConditionOperator string

const (
	OperatorGreaterThan    ConditionOperator = ">"
	OperatorLessThan       ConditionOperator = "<"
	OperatorGreaterOrEqual ConditionOperator = ">="
	OperatorLessOrEqual    ConditionOperator = "<="
	OperatorEqual          ConditionOperator = "="
	OperatorNotEqual       ConditionOperator = "!="
)

// String returns the string representation of the operator
func (o ConditionOperator) String() string {
	return string(o)
}

// Valid checks if the operator is valid
func (o ConditionOperator) Valid() bool {
	switch o {
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual,
		OperatorLessOrEqual, OperatorEqual, OperatorNotEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to an actual and a target value.
// Equality uses an epsilon tolerance since metric aggregates are floats.
func (o ConditionOperator) Compare(actual, target float64) bool {
	switch o {
	case OperatorGreaterThan:
		return actual > target
	case OperatorLessThan:
		return actual < target
	case OperatorGreaterOrEqual:
		return actual >= target
	case OperatorLessOrEqual:
		return actual <= target
	case OperatorEqual:
		return math.Abs(actual-target) < utils.ComparisonEpsilon
	case OperatorNotEqual:
		return math.Abs(actual-target) >= utils.ComparisonEpsilon
	default:
		return false
	}
}

// ActionType represents the action a rule executes when its condition matches
type ActionType string

const (
	ActionPauseAd        ActionType = "pause_ad"
	ActionResumeAd       ActionType = "resume_ad"
	ActionIncreaseBudget ActionType = "increase_budget"
	ActionDecreaseBudget ActionType = "decrease_budget"
	ActionDuplicateAdSet ActionType = "duplicate_adset"
	ActionCreateAlert    ActionType = "create_alert"
)

// String returns the string representation of the action type
func (a ActionType) String() string {
	return string(a)
}

// Valid checks if the action type is valid
func (a ActionType) Valid() bool {
	switch a {
	case ActionPauseAd, ActionResumeAd, ActionIncreaseBudget,
		ActionDecreaseBudget, ActionDuplicateAdSet, ActionCreateAlert:
		return true
	default:
		return false
	}
}

// Rollbackable reports whether executions of this action can be reversed.
// Duplication and alerts have no stored inverse.
func (a ActionType) Rollbackable() bool {
	switch a {
	case ActionPauseAd, ActionResumeAd, ActionIncreaseBudget, ActionDecreaseBudget:
		return true
	default:
		return false
	}
}

// MutatesBudget reports whether the action changes entity budgets
func (a ActionType) MutatesBudget() bool {
	return a == ActionIncreaseBudget || a == ActionDecreaseBudget
}

// MutatesStatus reports whether the action changes entity delivery status
func (a ActionType) MutatesStatus() bool {
	return a == ActionPauseAd || a == ActionResumeAd
}

// Scan implements the sql.Scanner interface for ActionType
func (a *ActionType) Scan(value any) error {
	if value == nil {
		*a = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*a = ActionType(v)
	case []byte:
		*a = ActionType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ActionType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ActionType. The raw
// string passes through unvalidated: audit rows must persist even when a
// rule carries an action type the engine does not support.
func (a ActionType) Value() (driver.Value, error) {
	return string(a), nil
}

// RuleCondition represents the JSON condition specification of a rule
type RuleCondition struct {
	Metric       string            `json:"metric"`
	Operator     ConditionOperator `json:"operator"`
	Threshold    float64           `json:"value"`
	DurationDays int               `json:"duration_days"`
	Aggregation  AggregationKind   `json:"aggregation"`
}

// Value implements the driver.Valuer interface for RuleCondition
func (c RuleCondition) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for RuleCondition
func (c *RuleCondition) Scan(value any) error {
	if value == nil {
		*c = RuleCondition{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleCondition", value)
	}

	return json.Unmarshal(bytes, c)
}

// ActionSpec represents the JSON action specification of a rule
type ActionSpec struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Value implements the driver.Valuer interface for ActionSpec
func (a ActionSpec) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for ActionSpec
func (a *ActionSpec) Scan(value any) error {
	if value == nil {
		*a = ActionSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ActionSpec", value)
	}

	return json.Unmarshal(bytes, a)
}

// PercentParam returns the "percent" parameter or the given default.
// JSON numbers decode as float64 inside the params map.
func (a ActionSpec) PercentParam(def float64) float64 {
	if a.Params == nil {
		return def
	}
	if v, ok := a.Params["percent"].(float64); ok && v > 0 {
		return v
	}
	return def
}

// StringParam returns a string parameter or the given default
func (a ActionSpec) StringParam(key, def string) string {
	if a.Params == nil {
		return def
	}
	if v, ok := a.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// AutomationRule represents a tenant-defined automation rule in the database
type AutomationRule struct {
	ID                  uint          `gorm:"primaryKey" json:"id"`
	UUID                uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_automation_rules_uuid" json:"uuid"`
	TenantID            uint          `gorm:"not null;index:idx_automation_rules_tenant_id" json:"tenant_id"`
	Name                string        `gorm:"type:varchar(255);not null" json:"name"`
	ScopeKind           ScopeKind     `gorm:"type:varchar(20);not null" json:"scope_kind"`
	AccountFilterID     *uint         `gorm:"index:idx_automation_rules_account_filter" json:"account_filter_id,omitempty"`
	TargetEntityID      *uint         `json:"target_entity_id,omitempty"`
	Condition           RuleCondition `gorm:"type:jsonb;not null" json:"condition"`
	Action              ActionSpec    `gorm:"type:jsonb;not null" json:"action"`
	CooldownHours       int           `gorm:"not null;default:0" json:"cooldown_hours"`
	MaxExecutionsPerDay int           `gorm:"not null;default:0" json:"max_executions_per_day"`
	Priority            int           `gorm:"not null;default:0;index:idx_automation_rules_priority" json:"priority"`
	IsActive            bool          `gorm:"not null;default:true;index:idx_automation_rules_is_active" json:"is_active"`
	RequiresApproval    bool          `gorm:"not null;default:false" json:"requires_approval"`
	LastExecutedAt      *time.Time    `json:"last_executed_at,omitempty"`
	ExecutionCount      int           `gorm:"not null;default:0" json:"execution_count"`
	ExecutionsToday     int           `gorm:"not null;default:0" json:"executions_today"`
	ExecutionDay        *time.Time    `json:"execution_day,omitempty"`
	CreatedAt           time.Time     `gorm:"index:idx_automation_rules_created_at" json:"created_at"`
	UpdatedAt           *time.Time    `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (AutomationRule) TableName() string {
	return "automation_rules"
}

// BeforeCreate is called before creating a new record
func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (r *AutomationRule) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	r.UpdatedAt = &now
	return nil
}

// Cooldown returns the rule cooldown as a duration
func (r *AutomationRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownHours) * time.Hour
}

// InCooldown reports whether the rule is still cooling down at the given
// instant. The rule becomes eligible again exactly at
// last_executed_at + cooldown.
func (r *AutomationRule) InCooldown(now time.Time) bool {
	if r.LastExecutedAt == nil || r.CooldownHours <= 0 {
		return false
	}
	return now.Before(r.LastExecutedAt.Add(r.Cooldown()))
}

// DailyCapReached reports whether the rule has exhausted its executions for
// the current UTC day. A cap of zero means unlimited.
func (r *AutomationRule) DailyCapReached(now time.Time) bool {
	if r.MaxExecutionsPerDay <= 0 {
		return false
	}
	if r.ExecutionDay == nil || !utils.SameUTCDay(*r.ExecutionDay, now) {
		return false
	}
	return r.ExecutionsToday >= r.MaxExecutionsPerDay
}

// CanExecute reports whether the rule is eligible to execute at the given
// instant: active, out of cooldown, under the daily cap.
func (r *AutomationRule) CanExecute(now time.Time) bool {
	return r.IsActive && !r.InCooldown(now) && !r.DailyCapReached(now)
}

// AutomationRuleFilter represents filter criteria for automation rules
type AutomationRuleFilter struct {
	ID               *uint      `json:"id,omitempty"`
	UUID             *uuid.UUID `json:"uuid,omitempty"`
	TenantID         *uint      `json:"tenant_id,omitempty"`
	ScopeKind        *ScopeKind `json:"scope_kind,omitempty"`
	IsActive         *bool      `json:"is_active,omitempty"`
	RequiresApproval *bool      `json:"requires_approval,omitempty"`
	CreatedAfter     *time.Time `json:"created_after,omitempty"`
	CreatedBefore    *time.Time `json:"created_before,omitempty"`
}
