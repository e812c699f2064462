package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/auth"
	"github.com/itechmeat/jeex/pkg/blacklist"
	"github.com/itechmeat/jeex/pkg/config"
	"github.com/itechmeat/jeex/pkg/kv"
	testdb "github.com/itechmeat/jeex/test/database"
)

func testAuthSettings() *config.AuthSettings {
	return &config.AuthSettings{
		JWTSecretEnv:    "JWT_SECRET",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		BcryptCost:      4,
	}
}

func newTestService(t *testing.T) *auth.Service {
	t.Helper()
	client := testdb.NewTestClient(t)
	srv := miniredis.RunT(t)
	redisClient := kv.NewFromRedisClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	bl := blacklist.New(redisClient)
	return auth.New(client.DB, bl, testAuthSettings(), []byte("test-secret"))
}

func TestRegister_CreatesTenantAndUserAndIssuesTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme", TenantName: "Acme Inc", Email: "a@acme.com", Username: "alice", Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@acme.com", user.Email)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenAccess, claims.Type)
	assert.Equal(t, user.ID.String(), claims.Subject)
}

func TestRegister_SecondUserJoinsExistingTenant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u1, _, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme2", TenantName: "Acme Two", Email: "a@acme2.com", Username: "alice", Password: "hunter22",
	})
	require.NoError(t, err)

	u2, _, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme2", Email: "b@acme2.com", Username: "bob", Password: "hunter22",
	})
	require.NoError(t, err)

	assert.Equal(t, u1.TenantID, u2.TenantID)
}

func TestRegister_DuplicateEmailInSameTenantConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme3", TenantName: "Acme Three", Email: "dup@acme3.com", Username: "alice", Password: "hunter22",
	})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme3", Email: "dup@acme3.com", Username: "someoneelse", Password: "hunter22",
	})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestLogin_WrongPasswordReturnsGenericUnauthorized(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme4", TenantName: "Acme Four", Email: "c@acme4.com", Username: "carol", Password: "correct-horse",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, auth.LoginInput{TenantSlug: "acme4", Identifier: "carol", Password: "wrong"})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, appErr.Kind)

	_, err = svc.Login(ctx, auth.LoginInput{TenantSlug: "does-not-exist", Identifier: "carol", Password: "correct-horse"})
	require.Error(t, err)
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, appErr.Kind)
}

func TestLogin_CorrectPasswordIssuesValidTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme5", TenantName: "Acme Five", Email: "d@acme5.com", Username: "dave", Password: "correct-horse",
	})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, auth.LoginInput{TenantSlug: "acme5", Identifier: "dave", Password: "correct-horse"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenAccess, claims.Type)
}

func TestRefresh_IssuesNewAccessTokenFromRefreshToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme6", TenantName: "Acme Six", Email: "e@acme6.com", Username: "erin", Password: "hunter22",
	})
	require.NoError(t, err)

	newAccess, _, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)

	claims, err := svc.ValidateToken(ctx, newAccess)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenAccess, claims.Type)
}

func TestRefresh_RejectsAccessTokenUsedAsRefreshToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme7", TenantName: "Acme Seven", Email: "f@acme7.com", Username: "frank", Password: "hunter22",
	})
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, tokens.AccessToken)
	require.Error(t, err)
}

func TestLogout_BlacklistsTokenSoFurtherValidationFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme8", TenantName: "Acme Eight", Email: "g@acme8.com", Username: "gina", Password: "hunter22",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.ValidateToken(ctx, tokens.AccessToken)
	require.Error(t, err)
}

func TestMe_ReturnsRegisteredProfile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme9", TenantName: "Acme Nine", Email: "h@acme9.com", Username: "hank", Password: "hunter22",
	})
	require.NoError(t, err)

	got, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "h@acme9.com", got.Email)
}

func TestBlacklistStats_CountsRevokedTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.Register(ctx, auth.RegisterInput{
		TenantSlug: "acme10", TenantName: "Acme Ten", Email: "i@acme10.com", Username: "ivan", Password: "hunter22",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims))

	count, err := svc.BlacklistStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
