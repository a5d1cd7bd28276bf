package businessflow

import (
	"testing"
	"time"

	"github.com/arvand/adpilot/app/services"
	"github.com/arvand/adpilot/repository"
	testingutil "github.com/arvand/adpilot/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "unit-test-secret-key-of-sufficient-length"

func newAuthFlow(t *testing.T) (AdminAuthFlow, *testingutil.TestFixtures) {
	t.Helper()

	db, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	tokenService, err := services.NewTokenService(time.Hour, 24*time.Hour, "adpilot", "adpilot-admin", testJWTSecret)
	require.NoError(t, err)

	flow := NewAdminAuthFlow(repository.NewAdminRepository(db.DB), tokenService)
	return flow, testingutil.NewTestFixtures(db)
}

func TestAdminLogin(t *testing.T) {
	flow, fixtures := newAuthFlow(t)
	ctx := testingutil.CreateTestContext()

	admin, err := fixtures.CreateTestAdmin("operator", "correct horse battery staple")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		session, err := flow.Login(ctx, "operator", "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, session.Admin.ID)
		assert.NotEmpty(t, session.AccessToken)
		assert.NotEmpty(t, session.RefreshToken)
		assert.NotEqual(t, session.AccessToken, session.RefreshToken)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := flow.Login(ctx, "operator", "wrong")
		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("UnknownUsername", func(t *testing.T) {
		_, err := flow.Login(ctx, "nobody", "whatever")
		assert.ErrorIs(t, err, ErrAdminNotFound)
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		_, err := flow.Login(ctx, "", "pw")
		assert.ErrorIs(t, err, ErrUsernameRequired)

		_, err = flow.Login(ctx, "operator", "")
		assert.ErrorIs(t, err, ErrPasswordRequired)
	})
}

func TestAdminLoginInactiveAccount(t *testing.T) {
	flow, fixtures := newAuthFlow(t)
	ctx := testingutil.CreateTestContext()

	admin, err := fixtures.CreateTestAdmin("retired", "correct horse battery staple")
	require.NoError(t, err)
	admin.IsActive = false
	require.NoError(t, fixtures.DB.DB.Save(admin).Error)

	_, err = flow.Login(ctx, "retired", "correct horse battery staple")
	assert.ErrorIs(t, err, ErrAdminInactive)
}

func TestAdminRefresh(t *testing.T) {
	flow, fixtures := newAuthFlow(t)
	ctx := testingutil.CreateTestContext()

	_, err := fixtures.CreateTestAdmin("operator", "correct horse battery staple")
	require.NoError(t, err)

	session, err := flow.Login(ctx, "operator", "correct horse battery staple")
	require.NoError(t, err)

	t.Run("RefreshTokenIssuesNewPair", func(t *testing.T) {
		refreshed, err := flow.Refresh(ctx, session.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.AccessToken)
		assert.NotEmpty(t, refreshed.RefreshToken)
	})

	t.Run("AccessTokenRejected", func(t *testing.T) {
		_, err := flow.Refresh(ctx, session.AccessToken)
		assert.Error(t, err)
	})

	t.Run("GarbageTokenRejected", func(t *testing.T) {
		_, err := flow.Refresh(ctx, "not-a-token")
		assert.Error(t, err)
	})
}
