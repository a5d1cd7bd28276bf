package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvand/adpilot/models"
	"gorm.io/gorm"
)

// adminRepository implements AdminRepository
type adminRepository struct {
	*BaseRepository[models.Admin, any]
}

// NewAdminRepository creates a new admin repository instance
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{
		BaseRepository: NewBaseRepository[models.Admin, any](db),
	}
}

// ByUsername retrieves an admin by username, or nil when not found
func (r *adminRepository) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	db := r.getDB(ctx)

	var admin models.Admin
	err := db.Where("username = ?", username).Last(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find admin by username: %w", err)
	}

	return &admin, nil
}

// UpdateLastLogin stamps the admin's last login time
func (r *adminRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Admin{}).Where("id = ?", id).
		Update("last_login_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to update admin %d last login: %w", id, err)
	}

	return nil
}
