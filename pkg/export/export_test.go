package export_test

import (
	"archive/zip"
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/config"
	"github.com/itechmeat/jeex/pkg/database"
	"github.com/itechmeat/jeex/pkg/docrepo"
	"github.com/itechmeat/jeex/pkg/export"
	testdb "github.com/itechmeat/jeex/test/database"
)

func testExportSettings(t *testing.T) *config.ExportSettings {
	t.Helper()
	return &config.ExportSettings{
		StorageDir:     t.TempDir(),
		DefaultFormat:  "zip",
		MinExpiryHours: 1,
		MaxExpiryHours: 168,
	}
}

func seedProject(t *testing.T, client *database.Client) (tenantID, projectID, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	tenantID, projectID, userID = uuid.New(), uuid.New(), uuid.New()

	_, err := client.ExecContext(ctx, `INSERT INTO tenants (id, name, slug) VALUES ($1, 'Acme', $2)`, tenantID, tenantID.String())
	require.NoError(t, err)
	_, err = client.ExecContext(ctx, `INSERT INTO users (id, tenant_id, email, username, password_hash) VALUES ($1, $2, 'a@b.com', 'alice', 'x')`, userID, tenantID)
	require.NoError(t, err)
	_, err = client.ExecContext(ctx, `INSERT INTO projects (id, tenant_id, name, owner_id) VALUES ($1, $2, 'Proj', $3)`, projectID, tenantID, userID)
	require.NoError(t, err)
	return tenantID, projectID, userID
}

func TestCreate_RejectsExpiryOutsideBounds(t *testing.T) {
	client := testdb.NewTestClient(t)
	tenantID, projectID, userID := seedProject(t, client)
	svc := export.New(client.DB, docrepo.New(client.DB), testExportSettings(t))

	_, err := svc.Create(context.Background(), export.CreateInput{
		TenantID: tenantID, ProjectID: projectID, RequestedBy: userID, ExpiresInHours: 0,
	})
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), export.CreateInput{
		TenantID: tenantID, ProjectID: projectID, RequestedBy: userID, ExpiresInHours: 200,
	})
	assert.Error(t, err)
}

func TestCreate_InsertsPendingExportWithExpiry(t *testing.T) {
	client := testdb.NewTestClient(t)
	tenantID, projectID, userID := seedProject(t, client)
	svc := export.New(client.DB, docrepo.New(client.DB), testExportSettings(t))

	before := time.Now().UTC()
	e, err := svc.Create(context.Background(), export.CreateInput{
		TenantID: tenantID, ProjectID: projectID, RequestedBy: userID, ExpiresInHours: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, export.StatusPending, e.Status)
	assert.WithinDuration(t, before.Add(time.Hour), e.ExpiresAt, 5*time.Second)

	got, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, export.StatusPending, got.Status)
}

func TestGenerate_AssemblesZipWithManifestAndCompletes(t *testing.T) {
	client := testdb.NewTestClient(t)
	tenantID, projectID, userID := seedProject(t, client)
	docs := docrepo.New(client.DB)
	cfg := testExportSettings(t)
	svc := export.New(client.DB, docs, cfg)
	ctx := context.Background()

	_, err := docs.CreateVersion(ctx, docrepo.CreateVersionInput{
		TenantID: tenantID, ProjectID: projectID, DocumentType: docrepo.DocumentAbout,
		Title: "About", Content: "idea description", CreatedBy: userID,
	})
	require.NoError(t, err)
	_, err = docs.CreateVersion(ctx, docrepo.CreateVersionInput{
		TenantID: tenantID, ProjectID: projectID, DocumentType: docrepo.DocumentSpecs,
		Title: "Specs", Content: "engineering standards", CreatedBy: userID,
	})
	require.NoError(t, err)

	e, err := svc.Create(ctx, export.CreateInput{
		TenantID: tenantID, ProjectID: projectID, RequestedBy: userID, ExpiresInHours: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Generate(ctx, e.ID))

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, export.StatusCompleted, got.Status)
	require.True(t, got.FilePath.Valid)
	assert.True(t, svc.IsDownloadable(got))

	zr, err := zip.OpenReader(got.FilePath.String)
	require.NoError(t, err)
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["manifest.json"])
	assert.True(t, names["about.md"])
	assert.True(t, names["specs.md"])
}

func TestProcessNext_ClaimsOnePendingExportAtATime(t *testing.T) {
	client := testdb.NewTestClient(t)
	tenantID, projectID, userID := seedProject(t, client)
	docs := docrepo.New(client.DB)
	svc := export.New(client.DB, docs, testExportSettings(t))
	ctx := context.Background()

	_, err := docs.CreateVersion(ctx, docrepo.CreateVersionInput{
		TenantID: tenantID, ProjectID: projectID, DocumentType: docrepo.DocumentAbout,
		Title: "About", Content: "content", CreatedBy: userID,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, export.CreateInput{TenantID: tenantID, ProjectID: projectID, RequestedBy: userID, ExpiresInHours: 1})
	require.NoError(t, err)

	processed, err := svc.ProcessNext(ctx, "worker-1")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = svc.ProcessNext(ctx, "worker-1")
	require.NoError(t, err)
	assert.False(t, processed)

	pending, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestExpireOverdue_MarksExpiredAndRemovesArtifact(t *testing.T) {
	client := testdb.NewTestClient(t)
	tenantID, projectID, userID := seedProject(t, client)
	docs := docrepo.New(client.DB)
	cfg := testExportSettings(t)
	svc := export.New(client.DB, docs, cfg)
	ctx := context.Background()

	_, err := docs.CreateVersion(ctx, docrepo.CreateVersionInput{
		TenantID: tenantID, ProjectID: projectID, DocumentType: docrepo.DocumentAbout,
		Title: "About", Content: "content", CreatedBy: userID,
	})
	require.NoError(t, err)

	e, err := svc.Create(ctx, export.CreateInput{TenantID: tenantID, ProjectID: projectID, RequestedBy: userID, ExpiresInHours: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Generate(ctx, e.ID))

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, got.FilePath.Valid)
	archivePath := got.FilePath.String
	_, err = os.Stat(archivePath)
	require.NoError(t, err)

	_, err = client.ExecContext(ctx, `UPDATE exports SET expires_at = now() - interval '1 hour' WHERE id = $1`, e.ID)
	require.NoError(t, err)

	count, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err = svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, export.StatusExpired, got.Status)
	assert.False(t, svc.IsDownloadable(got))

	_, err = os.Stat(archivePath)
	assert.True(t, os.IsNotExist(err))
}
