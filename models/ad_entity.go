package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/arvand/adpilot/utils"
	"gorm.io/gorm"
)

// EntityStatus represents the delivery status of an advertising entity
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "active"
	EntityStatusPaused   EntityStatus = "paused"
	EntityStatusArchived EntityStatus = "archived"
)

// String returns the string representation of the status
func (s EntityStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s EntityStatus) Valid() bool {
	switch s {
	case EntityStatusActive, EntityStatusPaused, EntityStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for EntityStatus
func (s *EntityStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = EntityStatus(v)
	case []byte:
		*s = EntityStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into EntityStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for EntityStatus
func (s EntityStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid EntityStatus: %s", s)
	}
	return string(s), nil
}

// AutomationTarget is implemented by every entity a rule can act on, so the
// engine never switches on table names.
type AutomationTarget interface {
	TargetID() uint
	TargetKind() ScopeKind
	TargetName() string
	TargetExternalID() string
	TargetStatus() EntityStatus
	// BudgetValues returns the daily and lifetime budgets. Entities without
	// budgets return nil for both.
	BudgetValues() (daily *float64, lifetime *float64)
}

// AdAccount represents a local mirror of an ad platform account
type AdAccount struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	TenantID   uint         `gorm:"not null;index:idx_ad_accounts_tenant_id" json:"tenant_id"`
	ExternalID string       `gorm:"type:varchar(255);not null;uniqueIndex:uk_ad_accounts_external_id" json:"external_id"`
	Name       string       `gorm:"type:varchar(255);not null" json:"name"`
	Status     EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Currency   string       `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	Timezone   string       `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (AdAccount) TableName() string {
	return "ad_accounts"
}

// BeforeCreate is called before creating a new record
func (a *AdAccount) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (a *AdAccount) TargetID() uint             { return a.ID }
func (a *AdAccount) TargetKind() ScopeKind      { return ScopeKindAccount }
func (a *AdAccount) TargetName() string         { return a.Name }
func (a *AdAccount) TargetExternalID() string   { return a.ExternalID }
func (a *AdAccount) TargetStatus() EntityStatus { return a.Status }

func (a *AdAccount) BudgetValues() (daily, lifetime *float64) { return nil, nil }

// AdCampaign represents a local mirror of an ad platform campaign
type AdCampaign struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	TenantID       uint         `gorm:"not null;index:idx_ad_campaigns_tenant_id" json:"tenant_id"`
	AccountID      uint         `gorm:"not null;index:idx_ad_campaigns_account_id" json:"account_id"`
	ExternalID     string       `gorm:"type:varchar(255);not null;uniqueIndex:uk_ad_campaigns_external_id" json:"external_id"`
	Name           string       `gorm:"type:varchar(255);not null" json:"name"`
	Status         EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Objective      string       `gorm:"type:varchar(64)" json:"objective"`
	DailyBudget    *float64     `json:"daily_budget,omitempty"`
	LifetimeBudget *float64     `json:"lifetime_budget,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (AdCampaign) TableName() string {
	return "ad_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *AdCampaign) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (c *AdCampaign) TargetID() uint             { return c.ID }
func (c *AdCampaign) TargetKind() ScopeKind      { return ScopeKindCampaign }
func (c *AdCampaign) TargetName() string         { return c.Name }
func (c *AdCampaign) TargetExternalID() string   { return c.ExternalID }
func (c *AdCampaign) TargetStatus() EntityStatus { return c.Status }
func (c *AdCampaign) BudgetValues() (daily, lifetime *float64) {
	return c.DailyBudget, c.LifetimeBudget
}

// AdSet represents a local mirror of an ad platform ad set
type AdSet struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	TenantID         uint         `gorm:"not null;index:idx_ad_sets_tenant_id" json:"tenant_id"`
	AccountID        uint         `gorm:"not null;index:idx_ad_sets_account_id" json:"account_id"`
	CampaignID       uint         `gorm:"not null;index:idx_ad_sets_campaign_id" json:"campaign_id"`
	ExternalID       string       `gorm:"type:varchar(255);not null;uniqueIndex:uk_ad_sets_external_id" json:"external_id"`
	Name             string       `gorm:"type:varchar(255);not null" json:"name"`
	Status           EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	OptimizationGoal string       `gorm:"type:varchar(64)" json:"optimization_goal"`
	Targeting        JSONBMap     `gorm:"type:jsonb" json:"targeting,omitempty"`
	DailyBudget      *float64     `json:"daily_budget,omitempty"`
	LifetimeBudget   *float64     `json:"lifetime_budget,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (AdSet) TableName() string {
	return "ad_sets"
}

// BeforeCreate is called before creating a new record
func (s *AdSet) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (s *AdSet) TargetID() uint             { return s.ID }
func (s *AdSet) TargetKind() ScopeKind      { return ScopeKindAdSet }
func (s *AdSet) TargetName() string         { return s.Name }
func (s *AdSet) TargetExternalID() string   { return s.ExternalID }
func (s *AdSet) TargetStatus() EntityStatus { return s.Status }
func (s *AdSet) BudgetValues() (daily, lifetime *float64) {
	return s.DailyBudget, s.LifetimeBudget
}

// Ad represents a local mirror of an ad platform ad
type Ad struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	TenantID   uint         `gorm:"not null;index:idx_ads_tenant_id" json:"tenant_id"`
	AccountID  uint         `gorm:"not null;index:idx_ads_account_id" json:"account_id"`
	CampaignID uint         `gorm:"not null" json:"campaign_id"`
	AdSetID    uint         `gorm:"not null;index:idx_ads_ad_set_id" json:"ad_set_id"`
	ExternalID string       `gorm:"type:varchar(255);not null;uniqueIndex:uk_ads_external_id" json:"external_id"`
	Name       string       `gorm:"type:varchar(255);not null" json:"name"`
	Status     EntityStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreativeID string       `gorm:"type:varchar(255)" json:"creative_id"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Ad) TableName() string {
	return "ads"
}

// BeforeCreate is called before creating a new record
func (a *Ad) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

func (a *Ad) TargetID() uint             { return a.ID }
func (a *Ad) TargetKind() ScopeKind      { return ScopeKindAd }
func (a *Ad) TargetName() string         { return a.Name }
func (a *Ad) TargetExternalID() string   { return a.ExternalID }
func (a *Ad) TargetStatus() EntityStatus { return a.Status }

func (a *Ad) BudgetValues() (daily, lifetime *float64) { return nil, nil }
