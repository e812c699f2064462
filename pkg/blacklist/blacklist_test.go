package blacklist_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/blacklist"
	"github.com/itechmeat/jeex/pkg/kv"
)

func newTestList(t *testing.T) (*blacklist.List, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return blacklist.New(kv.NewFromRedisClient(rdb)), srv
}

func TestIsRevoked_UnknownTokenIsNotRevoked(t *testing.T) {
	l, _ := newTestList(t)
	tenant := uuid.New()
	revoked, err := l.IsRevoked(context.Background(), tenant, "never-seen")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevoke_MarksTokenRevoked(t *testing.T) {
	l, _ := newTestList(t)
	ctx := context.Background()
	tenant := uuid.New()

	require.NoError(t, l.Revoke(ctx, tenant, "jti-1", time.Now().Add(time.Minute)))

	revoked, err := l.IsRevoked(ctx, tenant, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRevoke_PastExpiryIsNoop(t *testing.T) {
	l, _ := newTestList(t)
	ctx := context.Background()
	tenant := uuid.New()

	require.NoError(t, l.Revoke(ctx, tenant, "jti-expired", time.Now().Add(-time.Minute)))

	revoked, err := l.IsRevoked(ctx, tenant, "jti-expired")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevoke_ExpiresAfterTTL(t *testing.T) {
	l, srv := newTestList(t)
	ctx := context.Background()
	tenant := uuid.New()

	require.NoError(t, l.Revoke(ctx, tenant, "jti-2", time.Now().Add(time.Second)))
	srv.FastForward(2 * time.Second)

	revoked, err := l.IsRevoked(ctx, tenant, "jti-2")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestCount_ReflectsRevokedEntries(t *testing.T) {
	l, _ := newTestList(t)
	ctx := context.Background()
	tenant := uuid.New()

	require.NoError(t, l.Revoke(ctx, tenant, "jti-a", time.Now().Add(time.Minute)))
	require.NoError(t, l.Revoke(ctx, tenant, "jti-b", time.Now().Add(time.Minute)))

	count, err := l.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

// TestTenantIsolation_SameJTIDifferentTenants verifies spec §4.3's tenant
// isolation: revoking a JTI under one tenant must not affect the same JTI
// under another tenant.
func TestTenantIsolation_SameJTIDifferentTenants(t *testing.T) {
	l, _ := newTestList(t)
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()
	const sharedJTI = "shared-jti"

	require.NoError(t, l.Revoke(ctx, tenantA, sharedJTI, time.Now().Add(time.Minute)))

	revokedA, err := l.IsRevoked(ctx, tenantA, sharedJTI)
	require.NoError(t, err)
	require.True(t, revokedA)

	revokedB, err := l.IsRevoked(ctx, tenantB, sharedJTI)
	require.NoError(t, err)
	require.False(t, revokedB)
}

// TestTenantIsolation_SameUserIDDifferentTenants verifies that a user-wide
// revocation under one tenant does not bleed into another tenant's
// namespace, even for the same user id value.
func TestTenantIsolation_SameUserIDDifferentTenants(t *testing.T) {
	l, _ := newTestList(t)
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()
	sharedUser := uuid.New()

	require.NoError(t, l.RevokeUser(ctx, tenantA, sharedUser, time.Minute))

	revokedA, err := l.IsUserRevoked(ctx, tenantA, sharedUser)
	require.NoError(t, err)
	require.True(t, revokedA)

	revokedB, err := l.IsUserRevoked(ctx, tenantB, sharedUser)
	require.NoError(t, err)
	require.False(t, revokedB)
}

func TestIsUserRevoked_UnknownUserIsNotRevoked(t *testing.T) {
	l, _ := newTestList(t)
	revoked, err := l.IsUserRevoked(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.False(t, revoked)
}
