package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSupportingIndexes creates indexes that are easier to express as
// idempotent raw SQL than as a numbered migration: a full-text search GIN
// index on document content, kept separate from the migrations directory
// so it can be safely re-run (CREATE INDEX IF NOT EXISTS) on every boot
// regardless of migration history.
func CreateSupportingIndexes(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_document_versions_content_gin
		ON document_versions USING gin(to_tsvector('english', content))`)
	if err != nil {
		return fmt.Errorf("failed to create document content GIN index: %w", err)
	}

	return nil
}
