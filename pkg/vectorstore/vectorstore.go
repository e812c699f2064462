// Package vectorstore implements the payload-filtered similarity search
// adapter (C5): a single multi-tenant collection over the shared Postgres
// store's pgvector extension, with tenant_id and project_id unconditionally
// injected into every query. There is no API surface by which a caller can
// omit either.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/itechmeat/jeex/pkg/apperr"
)

// PointType distinguishes durable knowledge chunks from ephemeral
// per-execution memory.
type PointType string

const (
	PointKnowledge PointType = "knowledge"
	PointMemory    PointType = "memory"
)

// Visibility is stored with each point and can be used as a search
// filter. It does not widen scope: Search always filters by project, so
// a public point is not returned to the tenant's other projects.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Store is the vector_points adapter. It wraps the shared pgx/sqlx
// connection pool rather than a separate vector-database service — the
// module has no dedicated vector DB client in its dependency set, and
// pgvector's ivfflat cosine index on the shared Postgres instance serves
// the same "payload-filtered similarity search" role without a second
// storage system to operate.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// PointInput is one vector to upsert, prior to scope/metadata enrichment.
type PointInput struct {
	ID         uuid.UUID
	Content    string
	Embedding  []float32
	Type       PointType
	Visibility Visibility
	Lang       string
	Version    int
	Payload    map[string]any
}

// UpsertResult mirrors the spec's upsert response shape.
type UpsertResult struct {
	Status       string
	PointsCount  int
	OperationID  uuid.UUID
}

// Upsert inserts or replaces a batch of points, scoping every row to the
// given tenant and project regardless of what the caller's payload map
// contains. vectors and payloads (carried inside each PointInput) must be
// equal in length to the points slice — here that's enforced implicitly
// since each PointInput already pairs its own vector with its own payload,
// so the validation that matters is a non-empty, dimension-consistent
// embedding per point.
func (s *Store) Upsert(ctx context.Context, tenantID, projectID uuid.UUID, points []PointInput) (*UpsertResult, error) {
	if len(points) == 0 {
		return nil, apperr.New(apperr.KindValidation, "upsert requires at least one point")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	opID := uuid.New()

	for i, p := range points {
		if len(p.Embedding) == 0 {
			return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("point %d: embedding must not be empty", i))
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.Lang == "" {
			p.Lang = "en"
		}
		if p.Visibility == "" {
			p.Visibility = VisibilityPrivate
		}
		if p.Version == 0 {
			p.Version = 1
		}

		payload := map[string]any{}
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["content"] = p.Content
		payload["tenant_id"] = tenantID.String()
		payload["project_id"] = projectID.String()
		payload["created_at"] = now.Format(time.RFC3339Nano)
		payload["vector_index"] = i
		payload["operation_id"] = opID.String()

		payloadJSON, err := marshalPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: marshal payload: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO vector_points (id, tenant_id, project_id, type, visibility, lang, version, payload, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				type = EXCLUDED.type,
				visibility = EXCLUDED.visibility,
				lang = EXCLUDED.lang,
				version = EXCLUDED.version,
				payload = EXCLUDED.payload,
				embedding = EXCLUDED.embedding`,
			p.ID, tenantID, projectID, string(p.Type), string(p.Visibility), p.Lang, p.Version,
			payloadJSON, pgvector.NewVector(p.Embedding), now,
		)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, fmt.Sprintf("vectorstore: upsert point %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("vectorstore: commit transaction: %w", err)
	}

	return &UpsertResult{Status: "completed", PointsCount: len(points), OperationID: opID}, nil
}

// SearchFilters are caller-supplied conjuncts on top of the mandatory
// tenant/project scope. A nil field means "no constraint on this field".
type SearchFilters struct {
	Type       *PointType
	Visibility *Visibility
	Lang       *string
	Version    *int
}

// SearchResult is one scored hit.
type SearchResult struct {
	ID      uuid.UUID
	Score   float64
	Payload map[string]any
}

// Search runs a cosine-distance nearest-neighbor query scoped to the given
// tenant and project. filters add further conjunctive constraints; they
// can never loosen or override the tenant/project scope because the scope
// predicate is fixed in the query text, not assembled from caller input.
func (s *Store) Search(ctx context.Context, tenantID, projectID uuid.UUID, queryVector []float32, limit int, scoreThreshold float64, filters SearchFilters) ([]SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, apperr.New(apperr.KindValidation, "search requires a non-empty query vector")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, payload, 1 - (embedding <=> $1) AS score
		FROM vector_points
		WHERE tenant_id = $2 AND project_id = $3`
	args := []any{pgvector.NewVector(queryVector), tenantID, projectID}

	if filters.Type != nil {
		args = append(args, string(*filters.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filters.Visibility != nil {
		args = append(args, string(*filters.Visibility))
		query += fmt.Sprintf(" AND visibility = $%d", len(args))
	}
	if filters.Lang != nil {
		args = append(args, *filters.Lang)
		query += fmt.Sprintf(" AND lang = $%d", len(args))
	}
	if filters.Version != nil {
		args = append(args, *filters.Version)
		query += fmt.Sprintf(" AND version = $%d", len(args))
	}

	args = append(args, scoreThreshold)
	query += fmt.Sprintf(" AND 1 - (embedding <=> $1) >= $%d", len(args))

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "vectorstore: search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			id         uuid.UUID
			payloadRaw []byte
			score      float64
		)
		if err := rows.Scan(&id, &payloadRaw, &score); err != nil {
			return nil, fmt.Errorf("vectorstore: scan search row: %w", err)
		}
		payload, err := unmarshalPayload(payloadRaw)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: unmarshal payload: %w", err)
		}
		results = append(results, SearchResult{ID: id, Score: score, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "vectorstore: search rows", err)
	}

	return results, nil
}

// Delete removes points scoped to the tenant/project. If pointIDs is
// empty, every point for the tenant/project is removed.
func (s *Store) Delete(ctx context.Context, tenantID, projectID uuid.UUID, pointIDs []uuid.UUID) error {
	var (
		res interface {
			RowsAffected() (int64, error)
		}
		err error
	)
	if len(pointIDs) == 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM vector_points WHERE tenant_id = $1 AND project_id = $2`, tenantID, projectID)
	} else {
		query, args, buildErr := sqlx.In(`DELETE FROM vector_points WHERE tenant_id = ? AND project_id = ? AND id IN (?)`, tenantID, projectID, pointIDs)
		if buildErr != nil {
			return fmt.Errorf("vectorstore: build delete query: %w", buildErr)
		}
		query = s.db.Rebind(query)
		res, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "vectorstore: delete", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("vectorstore: rows affected: %w", err)
	}
	return nil
}

// Count returns the number of points stored for the tenant/project.
func (s *Store) Count(ctx context.Context, tenantID, projectID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM vector_points WHERE tenant_id = $1 AND project_id = $2`, tenantID, projectID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, "vectorstore: count", err)
	}
	return n, nil
}
