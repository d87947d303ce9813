// Package persona implements the canonical persona record using PostgreSQL.
// The record holds the latest committed field values as a JSONB document.
package persona

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/persona-registry/internal/adapter/postgres"
	"github.com/heartmarshall/persona-registry/internal/domain"
)

// Repo provides persona persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new persona repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const createSQL = `
INSERT INTO personas (id, fields, updated_at)
VALUES ($1, $2, $3)`

const getSQL = `
SELECT id, fields, updated_at FROM personas WHERE id = $1`

const lockSQL = `
SELECT id, fields, updated_at FROM personas WHERE id = $1 FOR UPDATE`

// The right-hand jsonb wins on key collision, so only the given fields change.
const applyFieldsSQL = `
UPDATE personas
SET fields = fields || $2::jsonb,
    updated_at = now()
WHERE id = $1`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Get returns the canonical record. Returns domain.ErrNotFound if it does not exist.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domain.Persona, error) {
	return r.get(ctx, getSQL, id)
}

// LockForUpdate reads the canonical record and holds a row lock until the
// surrounding transaction ends. Concurrent changes to the same persona queue
// behind it. Must be called inside TxManager.RunInTx.
func (r *Repo) LockForUpdate(ctx context.Context, id uuid.UUID) (domain.Persona, error) {
	return r.get(ctx, lockSQL, id)
}

func (r *Repo) get(ctx context.Context, sql string, id uuid.UUID) (domain.Persona, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	p, err := scanPersona(q.QueryRow(ctx, sql, id))
	if err != nil {
		return domain.Persona{}, postgres.MapError(err, "persona", id)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new canonical record.
func (r *Repo) Create(ctx context.Context, p domain.Persona) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return fmt.Errorf("persona marshal fields: %w", err)
	}

	if _, err := q.Exec(ctx, createSQL, p.ID, fieldsJSON, p.UpdatedAt); err != nil {
		return postgres.MapError(err, "persona", p.ID)
	}
	return nil
}

// ApplyFields overwrites the given fields of the record and leaves all others
// untouched. It reports whether the record existed.
func (r *Repo) ApplyFields(ctx context.Context, id uuid.UUID, fields domain.Fields) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("persona marshal fields: %w", err)
	}

	tag, err := q.Exec(ctx, applyFieldsSQL, id, fieldsJSON)
	if err != nil {
		return false, postgres.MapError(err, "persona", id)
	}
	return tag.RowsAffected() == 1, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanPersona(row pgx.Row) (domain.Persona, error) {
	var (
		p          domain.Persona
		fieldsJSON []byte
	)
	if err := row.Scan(&p.ID, &fieldsJSON, &p.UpdatedAt); err != nil {
		return domain.Persona{}, err
	}
	if err := json.Unmarshal(fieldsJSON, &p.Fields); err != nil {
		return domain.Persona{}, fmt.Errorf("persona %s unmarshal fields: %w", p.ID, err)
	}
	return p, nil
}
