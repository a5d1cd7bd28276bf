package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewTokenService(time.Hour, 24*time.Hour, "adpilot", "adpilot-admin", "unit-test-secret-key-of-sufficient-length")
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(time.Hour, 24*time.Hour, "adpilot", "adpilot-admin", "")
	assert.Error(t, err)
}

func TestGenerateAndValidateAdminTokens(t *testing.T) {
	svc := newTestTokenService(t)

	accessToken, refreshToken, err := svc.GenerateAdminTokens(42)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	t.Run("AccessClaims", func(t *testing.T) {
		claims, err := svc.ValidateAdminToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.AdminID)
		assert.Equal(t, "access", claims.TokenType)
		assert.NotEmpty(t, claims.TokenID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	})

	t.Run("RefreshClaims", func(t *testing.T) {
		claims, err := svc.ValidateAdminToken(refreshToken)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.AdminID)
		assert.Equal(t, "refresh", claims.TokenType)
	})
}

func TestValidateAdminTokenRejectsBadInput(t *testing.T) {
	svc := newTestTokenService(t)

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateAdminToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := NewTokenService(time.Hour, 24*time.Hour, "adpilot", "adpilot-admin", "a-completely-different-signing-key-here")
		require.NoError(t, err)

		token, _, err := other.GenerateAdminTokens(1)
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Expired", func(t *testing.T) {
		shortLived, err := NewTokenService(-time.Minute, -time.Minute, "adpilot", "adpilot-admin", "unit-test-secret-key-of-sufficient-length")
		require.NoError(t, err)

		token, _, err := shortLived.GenerateAdminTokens(1)
		require.NoError(t, err)

		_, err = shortLived.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestRefreshAdminToken(t *testing.T) {
	svc := newTestTokenService(t)

	_, refreshToken, err := svc.GenerateAdminTokens(7)
	require.NoError(t, err)

	t.Run("IssuesNewPair", func(t *testing.T) {
		newAccess, newRefresh, err := svc.RefreshAdminToken(refreshToken)
		require.NoError(t, err)

		claims, err := svc.ValidateAdminToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.AdminID)
		assert.Equal(t, "access", claims.TokenType)

		claims, err = svc.ValidateAdminToken(newRefresh)
		require.NoError(t, err)
		assert.Equal(t, "refresh", claims.TokenType)
	})

	t.Run("AccessTokenRejected", func(t *testing.T) {
		accessToken, _, err := svc.GenerateAdminTokens(7)
		require.NoError(t, err)

		_, _, err = svc.RefreshAdminToken(accessToken)
		assert.Error(t, err)
	})
}
