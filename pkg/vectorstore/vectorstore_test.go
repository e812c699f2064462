package vectorstore_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/vectorstore"
	testdb "github.com/itechmeat/jeex/test/database"
)

func randomVector(seed int64, dims int) []float32 {
	r := rand.New(rand.NewSource(seed))
	v := make([]float32, dims)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func TestUpsertAndSearch_ScopesToTenantAndProject(t *testing.T) {
	client := testdb.NewTestClient(t)
	store := vectorstore.New(client.DB)
	ctx := context.Background()

	tenantA, projectA, userA := uuid.New(), uuid.New(), uuid.New()
	tenantB, projectB, userB := uuid.New(), uuid.New(), uuid.New()

	for _, s := range []struct {
		tenant, project, user uuid.UUID
	}{{tenantA, projectA, userA}, {tenantB, projectB, userB}} {
		_, err := client.ExecContext(ctx, `INSERT INTO tenants (id, name, slug) VALUES ($1, 'Acme', $2)`, s.tenant, s.tenant.String())
		require.NoError(t, err)
		_, err = client.ExecContext(ctx, `INSERT INTO users (id, tenant_id, email, username, password_hash) VALUES ($1, $2, 'a@b.com', 'alice', 'x')`, s.user, s.tenant)
		require.NoError(t, err)
		_, err = client.ExecContext(ctx, `INSERT INTO projects (id, tenant_id, name, owner_id) VALUES ($1, $2, 'Proj', $3)`, s.project, s.tenant, s.user)
		require.NoError(t, err)
	}

	vecA := randomVector(1, 1536)
	vecB := randomVector(2, 1536)

	_, err := store.Upsert(ctx, tenantA, projectA, []vectorstore.PointInput{
		{Content: "alpha chunk", Embedding: vecA, Type: vectorstore.PointKnowledge},
	})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, tenantB, projectB, []vectorstore.PointInput{
		{Content: "beta chunk", Embedding: vecB, Type: vectorstore.PointKnowledge},
	})
	require.NoError(t, err)

	resultsA, err := store.Search(ctx, tenantA, projectA, vecA, 10, -1, vectorstore.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, resultsA, 1)
	assert.Equal(t, "alpha chunk", resultsA[0].Payload["content"])

	countA, err := store.Count(ctx, tenantA, projectA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countA)

	countB, err := store.Count(ctx, tenantB, projectB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countB)
}

func TestUpsert_RejectsEmptyBatch(t *testing.T) {
	client := testdb.NewTestClient(t)
	store := vectorstore.New(client.DB)
	ctx := context.Background()

	_, err := store.Upsert(ctx, uuid.New(), uuid.New(), nil)
	assert.Error(t, err)
}

func TestDelete_RemovesOnlyScopedPoints(t *testing.T) {
	client := testdb.NewTestClient(t)
	store := vectorstore.New(client.DB)
	ctx := context.Background()

	tenantID, projectID, userID := uuid.New(), uuid.New(), uuid.New()
	_, err := client.ExecContext(ctx, `INSERT INTO tenants (id, name, slug) VALUES ($1, 'Acme', $2)`, tenantID, tenantID.String())
	require.NoError(t, err)
	_, err = client.ExecContext(ctx, `INSERT INTO users (id, tenant_id, email, username, password_hash) VALUES ($1, $2, 'a@b.com', 'alice', 'x')`, userID, tenantID)
	require.NoError(t, err)
	_, err = client.ExecContext(ctx, `INSERT INTO projects (id, tenant_id, name, owner_id) VALUES ($1, $2, 'Proj', $3)`, projectID, tenantID, userID)
	require.NoError(t, err)

	id := uuid.New()
	_, err = store.Upsert(ctx, tenantID, projectID, []vectorstore.PointInput{
		{ID: id, Content: "doomed", Embedding: randomVector(3, 1536)},
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, tenantID, projectID, []uuid.UUID{id}))

	count, err := store.Count(ctx, tenantID, projectID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
