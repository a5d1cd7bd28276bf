package dto

import (
	"time"

	"github.com/arvand/adpilot/models"
)

// AdminLoginRequest represents an operator login request
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// AdminRefreshRequest represents a token refresh request
type AdminRefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AdminDTO represents an operator in API responses
type AdminDTO struct {
	UUID        string     `json:"uuid"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// NewAdminDTO maps an admin model to its API shape
func NewAdminDTO(admin *models.Admin) AdminDTO {
	return AdminDTO{
		UUID:        admin.UUID.String(),
		Username:    admin.Username,
		Email:       admin.Email,
		IsActive:    admin.IsActive,
		LastLoginAt: admin.LastLoginAt,
	}
}

// AdminSessionResponse represents the result of a login or refresh
type AdminSessionResponse struct {
	Admin        AdminDTO `json:"admin"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
}
