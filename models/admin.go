package models

import (
	"time"

	"github.com/arvand/adpilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Admin represents an operator account for the control API
type Admin struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_admins_uuid" json:"uuid"`
	Username     string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_admins_username" json:"username"`
	Email        string     `gorm:"type:varchar(255);not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Admin) TableName() string {
	return "admins"
}

// BeforeCreate is called before creating a new record
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}
