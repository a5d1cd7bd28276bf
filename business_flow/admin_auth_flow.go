package businessflow

import (
	"context"

	"github.com/arvand/adpilot/app/services"
	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminSession is the result of a successful login or refresh
type AdminSession struct {
	Admin        *models.Admin
	AccessToken  string
	RefreshToken string
}

// AdminAuthFlow authenticates control API operators
type AdminAuthFlow interface {
	Login(ctx context.Context, username, password string) (*AdminSession, error)
	Refresh(ctx context.Context, refreshToken string) (*AdminSession, error)
}

// AdminAuthFlowImpl implements AdminAuthFlow
type AdminAuthFlowImpl struct {
	adminRepo    repository.AdminRepository
	tokenService services.TokenService
}

// NewAdminAuthFlow creates a new admin auth flow
func NewAdminAuthFlow(adminRepo repository.AdminRepository, tokenService services.TokenService) AdminAuthFlow {
	return &AdminAuthFlowImpl{
		adminRepo:    adminRepo,
		tokenService: tokenService,
	}
}

// Login verifies the operator's credentials and issues tokens
func (f *AdminAuthFlowImpl) Login(ctx context.Context, username, password string) (*AdminSession, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	admin, err := f.adminRepo.ByUsername(ctx, username)
	if err != nil {
		return nil, NewBusinessError("LOGIN_LOOKUP_FAILED", "failed to load admin", err)
	}
	if admin == nil {
		return nil, ErrAdminNotFound
	}
	if !admin.IsActive {
		return nil, ErrAdminInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrIncorrectPassword
	}

	accessToken, refreshToken, err := f.tokenService.GenerateAdminTokens(admin.ID)
	if err != nil {
		return nil, NewBusinessError("LOGIN_TOKEN_FAILED", "failed to issue tokens", err)
	}

	now := utils.UTCNow()
	if err := f.adminRepo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		return nil, NewBusinessError("LOGIN_STAMP_FAILED", "failed to stamp login time", err)
	}
	admin.LastLoginAt = &now

	return &AdminSession{
		Admin:        admin,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair
func (f *AdminAuthFlowImpl) Refresh(ctx context.Context, refreshToken string) (*AdminSession, error) {
	claims, err := f.tokenService.ValidateAdminToken(refreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_TOKEN_INVALID", "invalid refresh token", err)
	}

	admin, err := f.adminRepo.ByID(ctx, claims.AdminID)
	if err != nil {
		return nil, NewBusinessError("REFRESH_LOOKUP_FAILED", "failed to load admin", err)
	}
	if admin == nil {
		return nil, ErrAdminNotFound
	}
	if !admin.IsActive {
		return nil, ErrAdminInactive
	}

	newAccessToken, newRefreshToken, err := f.tokenService.RefreshAdminToken(refreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_TOKEN_FAILED", "failed to refresh tokens", err)
	}

	return &AdminSession{
		Admin:        admin,
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
	}, nil
}
