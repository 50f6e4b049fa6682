package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGStore implements Store using Postgres. Sections live in a single jsonb
// column; section updates go through jsonb_set so concurrent writers for
// different sections of one job never clobber each other.
type PGStore struct {
	DB       *sql.DB
	Required []string
}

// NewPGStore constructs a PGStore deriving status over the given required
// section ids.
func NewPGStore(db *sql.DB, requiredIDs []string) *PGStore {
	return &PGStore{DB: db, Required: append([]string(nil), requiredIDs...)}
}

const pgUniqueViolation = "23505"

// Create inserts a new job.
func (s *PGStore) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, owner_id, title, description, industry, target_market, status, sections, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)`

	sections, err := json.Marshal(analysis.Sections)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.OwnerID,
		analysis.Input.Title,
		analysis.Input.Description,
		analysis.Input.Industry,
		analysis.Input.TargetMarket,
		analysis.Status,
		sections,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByID returns a job snapshot. Status is re-derived from the stored
// sections so a crash between a section write and a status write can never
// surface a stale aggregate.
func (s *PGStore) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, owner_id, title, description, industry, target_market, status, sections, created_at, updated_at
FROM analyses
WHERE id = $1::uuid AND deleted_at IS NULL
LIMIT 1`

	analysis, err := scanAnalysis(s.DB.QueryRowContext(ctx, query, analysisID))
	if err != nil {
		return Analysis{}, err
	}
	analysis.Status = ComputeStatus(analysis.Sections, s.Required)
	return analysis, nil
}

// UpdateSection writes one section entry and re-derives the overall status in
// a single statement. The WHERE clause only matches a still-pending section,
// which enforces the write-once transition. Returns the new overall status.
func (s *PGStore) UpdateSection(ctx context.Context, analysisID, sectionID string, result SectionResult) (string, error) {
	const query = `
UPDATE analyses
SET sections = jsonb_set(sections, ARRAY[$2], $3::jsonb),
    status = CASE
        WHEN EXISTS (
            SELECT 1 FROM jsonb_each(jsonb_set(sections, ARRAY[$2], $3::jsonb)) AS sec(key, value)
            WHERE sec.key = ANY($4::text[]) AND sec.value->>'status' = 'failed'
        ) THEN 'failed'
        WHEN NOT EXISTS (
            SELECT 1 FROM jsonb_each(jsonb_set(sections, ARRAY[$2], $3::jsonb)) AS sec(key, value)
            WHERE sec.key = ANY($4::text[]) AND sec.value->>'status' <> 'completed'
        ) THEN 'completed'
        ELSE 'processing'
    END,
    updated_at = now()
WHERE id = $1::uuid AND deleted_at IS NULL
  AND sections #>> ARRAY[$2, 'status'] = 'pending'
RETURNING status`

	payload, err := json.Marshal(result)
	if err != nil {
		return "", err
	}

	var status string
	err = s.DB.QueryRowContext(ctx, query, analysisID, sectionID, payload, s.requiredArray()).Scan(&status)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	// No row matched: either the job is gone or the section is terminal.
	const probe = `SELECT sections #>> ARRAY[$2, 'status'] FROM analyses WHERE id = $1::uuid AND deleted_at IS NULL`
	var current sql.NullString
	probeErr := s.DB.QueryRowContext(ctx, probe, analysisID, sectionID).Scan(&current)
	if errors.Is(probeErr, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if probeErr != nil {
		return "", probeErr
	}
	if !current.Valid {
		return "", fmt.Errorf("unknown section %q", sectionID)
	}
	return "", ErrSectionFinal
}

// ListByOwner lists an owner's jobs, newest first.
func (s *PGStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT id, owner_id, title, description, industry, target_market, status, sections, created_at, updated_at
FROM analyses
WHERE owner_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := s.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analysis.Status = ComputeStatus(analysis.Sections, s.Required)
		out = append(out, analysis)
	}
	return out, rows.Err()
}

// requiredArray renders the required ids as a Postgres text[] literal. The
// ids come from the compiled-in registry, never from user input.
func (s *PGStore) requiredArray() string {
	out := "{"
	for i, id := range s.Required {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out + "}"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var sections []byte
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Input.Title,
		&a.Input.Description,
		&a.Input.Industry,
		&a.Input.TargetMarket,
		&a.Status,
		&sections,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	a.Sections = map[string]SectionResult{}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &a.Sections); err != nil {
			return Analysis{}, fmt.Errorf("decode sections for %s: %w", a.ID, err)
		}
	}
	return a, nil
}

var _ Store = (*PGStore)(nil)
