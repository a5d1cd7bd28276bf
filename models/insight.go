package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// InsightSeverity represents the severity of an insight
type InsightSeverity string

const (
	InsightSeverityInfo     InsightSeverity = "info"
	InsightSeverityWarning  InsightSeverity = "warning"
	InsightSeverityCritical InsightSeverity = "critical"
)

// String returns the string representation of the severity
func (s InsightSeverity) String() string {
	return string(s)
}

// Valid checks if the severity is valid
func (s InsightSeverity) Valid() bool {
	switch s {
	case InsightSeverityInfo, InsightSeverityWarning, InsightSeverityCritical:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for InsightSeverity
func (s *InsightSeverity) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = InsightSeverity(v)
	case []byte:
		*s = InsightSeverity(string(v))
	default:
		return fmt.Errorf("cannot scan %T into InsightSeverity", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for InsightSeverity
func (s InsightSeverity) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid InsightSeverity: %s", s)
	}
	return string(s), nil
}

// Insight represents an alert emitted by a create_alert action
type Insight struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_insights_uuid" json:"uuid"`
	TenantID       uint            `gorm:"not null;index:idx_insights_tenant_id" json:"tenant_id"`
	RuleID         *uint           `gorm:"index:idx_insights_rule_id" json:"rule_id,omitempty"`
	Severity       InsightSeverity `gorm:"type:varchar(20);not null;default:'info'" json:"severity"`
	Title          string          `gorm:"type:varchar(255);not null" json:"title"`
	Message        string          `gorm:"type:text;not null" json:"message"`
	EntityType     ScopeKind       `gorm:"type:varchar(20);not null" json:"entity_type"`
	EntityID       uint            `gorm:"not null;index:idx_insights_entity_id" json:"entity_id"`
	CorrelationIDs pq.StringArray  `gorm:"type:text[]" json:"correlation_ids,omitempty"`
	CreatedAt      time.Time       `gorm:"index:idx_insights_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (Insight) TableName() string {
	return "insights"
}

// BeforeCreate is called before creating a new record
func (i *Insight) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == uuid.Nil {
		i.UUID = uuid.New()
	}
	if i.Severity == "" {
		i.Severity = InsightSeverityInfo
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = utils.UTCNow()
	}
	return nil
}

// InsightFilter represents filter criteria for insights
type InsightFilter struct {
	ID            *uint            `json:"id,omitempty"`
	TenantID      *uint            `json:"tenant_id,omitempty"`
	RuleID        *uint            `json:"rule_id,omitempty"`
	Severity      *InsightSeverity `json:"severity,omitempty"`
	EntityType    *ScopeKind       `json:"entity_type,omitempty"`
	EntityID      *uint            `json:"entity_id,omitempty"`
	CreatedAfter  *time.Time       `json:"created_after,omitempty"`
	CreatedBefore *time.Time       `json:"created_before,omitempty"`
}
