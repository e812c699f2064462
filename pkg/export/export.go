// Package export implements the document export pipeline (C14):
// `create_export` queues a Pending row, a background worker assembles
// the project's latest non-deleted document versions into a ZIP
// archive, and a retention sweep expires artifacts past their window.
// It implements pkg/queue.Executor (the worker pool polls it) and
// pkg/cleanup.ExportExpirer (the retention sweep drives it).
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/config"
	"github.com/itechmeat/jeex/pkg/docrepo"
)

// Status mirrors exports.status's fixed CHECK constraint.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Export is one exports row.
type Export struct {
	ID          uuid.UUID       `db:"id"`
	TenantID    uuid.UUID       `db:"tenant_id"`
	ProjectID   uuid.UUID       `db:"project_id"`
	RequestedBy uuid.UUID       `db:"requested_by"`
	Status      Status          `db:"status"`
	FilePath    sql.NullString  `db:"file_path"`
	Manifest    json.RawMessage `db:"manifest"`
	Error       sql.NullString  `db:"error"`
	ExpiresAt   time.Time       `db:"expires_at"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Manifest is the document listing embedded in the ZIP and mirrored
// into the exports.manifest column.
type Manifest struct {
	ProjectID uuid.UUID       `json:"project_id"`
	CreatedAt time.Time       `json:"created_at"`
	Documents []ManifestEntry `json:"documents"`
}

// ManifestEntry describes one document packed into the archive.
type ManifestEntry struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Title     string `json:"title"`
	PathInZip string `json:"path_in_zip"`
}

// Service implements create_export/generate_export against Postgres and
// the local filesystem named by cfg.StorageDir.
type Service struct {
	db  *sqlx.DB
	doc *docrepo.Repository
	cfg *config.ExportSettings
}

func New(db *sqlx.DB, doc *docrepo.Repository, cfg *config.ExportSettings) *Service {
	return &Service{db: db, doc: doc, cfg: cfg}
}

// CreateInput bundles the fields needed to queue a new export.
type CreateInput struct {
	TenantID       uuid.UUID
	ProjectID      uuid.UUID
	RequestedBy    uuid.UUID
	Format         string
	ExpiresInHours int
}

// Create inserts a new Pending export row. The worker pool picks it up
// on its next poll; Create itself does no ZIP assembly. Format is
// validated against the configured default rather than stored — ZIP is
// the only archive format this service knows how to assemble, so a
// caller naming anything else is rejected up front instead of failing
// later inside Generate.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Export, error) {
	format := in.Format
	if format == "" {
		format = s.cfg.DefaultFormat
	}
	if format != s.cfg.DefaultFormat {
		return nil, apperr.Validation("format", fmt.Sprintf("unsupported export format %q", format))
	}

	hours := in.ExpiresInHours
	minH, maxH := s.cfg.MinExpiryHours, s.cfg.MaxExpiryHours
	if hours < minH || hours > maxH {
		return nil, apperr.Validation("expires_in_hours", fmt.Sprintf("must be between %d and %d", minH, maxH))
	}

	e := &Export{
		ID:          uuid.New(),
		TenantID:    in.TenantID,
		ProjectID:   in.ProjectID,
		RequestedBy: in.RequestedBy,
		Status:      StatusPending,
		Manifest:    json.RawMessage(`{}`),
		ExpiresAt:   time.Now().UTC().Add(time.Duration(hours) * time.Hour),
	}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO exports (id, tenant_id, project_id, requested_by, status, manifest, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		e.ID, e.TenantID, e.ProjectID, e.RequestedBy, string(e.Status), []byte(e.Manifest), e.ExpiresAt,
	).Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("export: create: %w", err)
	}
	return e, nil
}

// Get loads one export row by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Export, error) {
	var e Export
	err := s.db.GetContext(ctx, &e, `SELECT * FROM exports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("export not found")
	}
	if err != nil {
		return nil, fmt.Errorf("export: get: %w", err)
	}
	return &e, nil
}

// IsDownloadable implements §4.12's "is_downloadable = (status=Completed
// ∧ now ≤ expires_at ∧ file_path exists)" check.
func (s *Service) IsDownloadable(e *Export) bool {
	if e.Status != StatusCompleted || !e.FilePath.Valid {
		return false
	}
	if time.Now().UTC().After(e.ExpiresAt) {
		return false
	}
	_, err := os.Stat(e.FilePath.String)
	return err == nil
}

// claimNextPending atomically picks one pending export and marks it
// Generating, using FOR UPDATE SKIP LOCKED so two workers never claim the
// same job.
func (s *Service) claimNextPending(ctx context.Context) (*Export, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("export: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var e Export
	err = tx.GetContext(ctx, &e, `
		SELECT * FROM exports WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED LIMIT 1`,
		string(StatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("export: claim query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE exports SET status = $1 WHERE id = $2`, string(StatusGenerating), e.ID); err != nil {
		return nil, fmt.Errorf("export: claim update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("export: claim commit: %w", err)
	}
	e.Status = StatusGenerating
	return &e, nil
}

// Generate assembles the project's latest non-deleted document versions
// into a ZIP archive under cfg.StorageDir and transitions the export to
// Completed, or to Failed with the error recorded on the row.
func (s *Service) Generate(ctx context.Context, id uuid.UUID) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	versions, err := s.doc.LatestPerType(ctx, e.TenantID, e.ProjectID)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("export: list documents: %w", err))
	}

	archivePath, manifest, err := s.assembleArchive(e, versions)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("export: assemble archive: %w", err))
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("export: marshal manifest: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE exports SET status = $1, file_path = $2, manifest = $3 WHERE id = $4`,
		string(StatusCompleted), archivePath, []byte(manifestJSON), id)
	if err != nil {
		return fmt.Errorf("export: mark completed: %w", err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, cause error) error {
	slog.Error("export: generation failed", "export_id", id, "error", cause)
	_, updErr := s.db.ExecContext(ctx, `
		UPDATE exports SET status = $1, error = $2 WHERE id = $3`,
		string(StatusFailed), cause.Error(), id)
	if updErr != nil {
		slog.Error("export: failed to record failure", "export_id", id, "error", updErr)
	}
	return cause
}

// assembleArchive writes one ZIP file per call under
// {storageDir}/{projectID}/{exportID}.zip containing every document in
// versions plus a manifest.json, and returns the written path and the
// manifest describing it.
func (s *Service) assembleArchive(e *Export, versions []docrepo.Version) (string, *Manifest, error) {
	dir := filepath.Join(s.cfg.StorageDir, e.ProjectID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("mkdir storage dir: %w", err)
	}
	archivePath := filepath.Join(dir, e.ID.String()+".zip")

	manifest := &Manifest{ProjectID: e.ProjectID, CreatedAt: time.Now().UTC()}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, v := range versions {
		entryName := documentFileName(v)
		w, err := zw.Create(entryName)
		if err != nil {
			_ = zw.Close()
			return "", nil, fmt.Errorf("zip entry %s: %w", entryName, err)
		}
		if _, err := w.Write([]byte(v.Content)); err != nil {
			_ = zw.Close()
			return "", nil, fmt.Errorf("zip write %s: %w", entryName, err)
		}
		manifest.Documents = append(manifest.Documents, ManifestEntry{
			Type:      v.DocumentType,
			Version:   v.VersionNum,
			Title:     v.Title,
			PathInZip: entryName,
		})
	}

	manifestBody, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = zw.Close()
		return "", nil, fmt.Errorf("marshal manifest: %w", err)
	}
	mw, err := zw.Create("manifest.json")
	if err != nil {
		_ = zw.Close()
		return "", nil, fmt.Errorf("zip manifest entry: %w", err)
	}
	if _, err := mw.Write(manifestBody); err != nil {
		_ = zw.Close()
		return "", nil, fmt.Errorf("zip manifest write: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", nil, fmt.Errorf("close zip: %w", err)
	}

	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		return "", nil, fmt.Errorf("write archive: %w", err)
	}
	return archivePath, manifest, nil
}

func documentFileName(v docrepo.Version) string {
	if v.DocumentType == string(docrepo.DocumentPlanEpic) && v.EpicNumber.Valid {
		return fmt.Sprintf("%s_%d.md", v.DocumentType, v.EpicNumber.Int32)
	}
	return v.DocumentType + ".md"
}

// ProcessNext implements pkg/queue.Executor: it claims the oldest
// pending export, if any, and runs it synchronously to completion.
func (s *Service) ProcessNext(ctx context.Context, workerID string) (bool, error) {
	e, err := s.claimNextPending(ctx)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}
	slog.Info("export: generating", "export_id", e.ID, "worker_id", workerID)
	if err := s.Generate(ctx, e.ID); err != nil {
		return true, err
	}
	return true, nil
}

// PendingCount implements pkg/queue.Executor.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM exports WHERE status = $1`, string(StatusPending))
	if err != nil {
		return 0, fmt.Errorf("export: pending count: %w", err)
	}
	return count, nil
}

// ActiveCount implements pkg/queue.Executor. Export rows carry no
// worker/pod assignment column, so every Generating row counts as
// active regardless of which pod claimed it.
func (s *Service) ActiveCount(ctx context.Context, _ string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM exports WHERE status = $1`, string(StatusGenerating))
	if err != nil {
		return 0, fmt.Errorf("export: active count: %w", err)
	}
	return count, nil
}

// ExpireOverdue implements pkg/cleanup.ExportExpirer: it marks every
// Completed or Generating export whose expires_at has passed as Expired
// and removes its artifact from disk, so a long-Generating row that
// outlives its window also lapses. Pending and Failed rows are not touched.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	var overdue []Export
	err := s.db.SelectContext(ctx, &overdue, `
		SELECT * FROM exports
		WHERE status IN ($1, $2) AND expires_at < now()`,
		string(StatusCompleted), string(StatusGenerating))
	if err != nil {
		return 0, fmt.Errorf("export: select overdue: %w", err)
	}

	expired := 0
	for _, e := range overdue {
		if e.FilePath.Valid {
			if err := os.Remove(e.FilePath.String); err != nil && !os.IsNotExist(err) {
				slog.Warn("export: failed to remove expired artifact", "export_id", e.ID, "path", e.FilePath.String, "error", err)
			}
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE exports SET status = $1 WHERE id = $2`, string(StatusExpired), e.ID); err != nil {
			slog.Error("export: failed to mark expired", "export_id", e.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}
