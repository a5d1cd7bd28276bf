package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONBMap is a free-form JSON object column
type JSONBMap map[string]any

// Value implements the driver.Valuer interface for JSONBMap
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for JSONBMap
func (m *JSONBMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// AutomationLogStatus represents the status of an automation log entry
type AutomationLogStatus string

const (
	AutomationLogStatusPending  AutomationLogStatus = "pending"
	AutomationLogStatusApproved AutomationLogStatus = "approved"
	AutomationLogStatusExecuted AutomationLogStatus = "executed"
	AutomationLogStatusRejected AutomationLogStatus = "rejected"
	AutomationLogStatusFailed   AutomationLogStatus = "failed"
	AutomationLogStatusExpired  AutomationLogStatus = "expired"
)

// String returns the string representation of the status
func (s AutomationLogStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AutomationLogStatus) Valid() bool {
	switch s {
	case AutomationLogStatusPending, AutomationLogStatusApproved,
		AutomationLogStatusExecuted, AutomationLogStatusRejected,
		AutomationLogStatusFailed, AutomationLogStatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further status transition is allowed.
// Rollback of an executed entry is recorded in side fields, not as a status.
func (s AutomationLogStatus) IsTerminal() bool {
	switch s {
	case AutomationLogStatusExecuted, AutomationLogStatusRejected,
		AutomationLogStatusFailed, AutomationLogStatusExpired:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AutomationLogStatus
func (s *AutomationLogStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AutomationLogStatus(v)
	case []byte:
		*s = AutomationLogStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AutomationLogStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AutomationLogStatus
func (s AutomationLogStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AutomationLogStatus: %s", s)
	}
	return string(s), nil
}

// AutomationLog represents one attempted action on one entity. Rows are
// append-only: only the status machine and the rollback side fields change
// after creation.
type AutomationLog struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uk_automation_logs_uuid" json:"uuid"`
	TenantID         uint                `gorm:"not null;index:idx_automation_logs_tenant_id" json:"tenant_id"`
	RuleID           uint                `gorm:"not null;index:idx_automation_logs_rule_id" json:"rule_id"`
	RuleName         string              `gorm:"type:varchar(255);not null" json:"rule_name"`
	EntityType       ScopeKind           `gorm:"type:varchar(20);not null;index:idx_automation_logs_entity" json:"entity_type"`
	EntityID         uint                `gorm:"not null;index:idx_automation_logs_entity" json:"entity_id"`
	EntityName       string              `gorm:"type:varchar(255)" json:"entity_name"`
	EntityExternalID string              `gorm:"type:varchar(255)" json:"entity_external_id"`
	ActionType       ActionType          `gorm:"type:varchar(30);not null" json:"action_type"`
	ActionParams     JSONBMap            `gorm:"type:jsonb" json:"action_params,omitempty"`
	PreviousState    JSONBMap            `gorm:"type:jsonb" json:"previous_state,omitempty"`
	NewState         JSONBMap            `gorm:"type:jsonb" json:"new_state,omitempty"`
	MetricsSnapshot  JSONBMap            `gorm:"type:jsonb" json:"metrics_snapshot,omitempty"`
	Status           AutomationLogStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_automation_logs_status" json:"status"`
	ErrorMessage     *string             `gorm:"type:text" json:"error_message,omitempty"`
	CanRollback      bool                `gorm:"not null;default:false" json:"can_rollback"`
	ApprovedBy       *uint               `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time          `json:"approved_at,omitempty"`
	RejectedBy       *uint               `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time          `json:"rejected_at,omitempty"`
	ExecutedAt       *time.Time          `json:"executed_at,omitempty"`
	RolledBackAt     *time.Time          `json:"rolled_back_at,omitempty"`
	RolledBackBy     *uint               `json:"rolled_back_by,omitempty"`
	CreatedAt        time.Time           `gorm:"index:idx_automation_logs_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (AutomationLog) TableName() string {
	return "automation_logs"
}

// BeforeCreate is called before creating a new record
func (l *AutomationLog) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	if l.Status == "" {
		l.Status = AutomationLogStatusPending
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CanTransitionTo checks if the entry can transition to the given status.
// pending entries either get executed directly, pass through approval, or
// end in a terminal state. Executed entries never change status again.
func (l *AutomationLog) CanTransitionTo(newStatus AutomationLogStatus) bool {
	switch l.Status {
	case AutomationLogStatusPending:
		return newStatus == AutomationLogStatusApproved ||
			newStatus == AutomationLogStatusExecuted ||
			newStatus == AutomationLogStatusRejected ||
			newStatus == AutomationLogStatusFailed ||
			newStatus == AutomationLogStatusExpired
	case AutomationLogStatusApproved:
		return newStatus == AutomationLogStatusExecuted ||
			newStatus == AutomationLogStatusFailed
	default:
		return false
	}
}

// IsRollbackable checks if the entry can be rolled back right now
func (l *AutomationLog) IsRollbackable() bool {
	return l.CanRollback &&
		l.Status == AutomationLogStatusExecuted &&
		l.RolledBackAt == nil
}

// AutomationLogFilter represents filter criteria for automation log entries
type AutomationLogFilter struct {
	ID            *uint                `json:"id,omitempty"`
	UUID          *uuid.UUID           `json:"uuid,omitempty"`
	TenantID      *uint                `json:"tenant_id,omitempty"`
	RuleID        *uint                `json:"rule_id,omitempty"`
	EntityType    *ScopeKind           `json:"entity_type,omitempty"`
	EntityID      *uint                `json:"entity_id,omitempty"`
	ActionType    *ActionType          `json:"action_type,omitempty"`
	Status        *AutomationLogStatus `json:"status,omitempty"`
	Rollbackable  *bool                `json:"rollbackable,omitempty"`
	CreatedAfter  *time.Time           `json:"created_after,omitempty"`
	CreatedBefore *time.Time           `json:"created_before,omitempty"`
}
