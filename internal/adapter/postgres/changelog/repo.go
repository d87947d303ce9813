// Package changelog implements the persona version store using PostgreSQL.
// Rows are append-only except for their status and reviewer columns.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/persona-registry/internal/adapter/postgres"
	"github.com/heartmarshall/persona-registry/internal/domain"
)

// Repo provides changelog persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new changelog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const entryColumns = `persona_id, generation, status, fields, submitted_by, reviewed_by, note, automated, created_at`

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const latestByStatusSQL = `
SELECT ` + entryColumns + `
FROM persona_changelog
WHERE persona_id = $1 AND status = ANY($2::text[])
ORDER BY generation DESC
LIMIT 1`

const getSQL = `
SELECT ` + entryColumns + `
FROM persona_changelog
WHERE persona_id = $1 AND generation = $2`

const maxGenerationSQL = `
SELECT COALESCE(MAX(generation), 0)
FROM persona_changelog
WHERE persona_id = $1`

const insertSQL = `
INSERT INTO persona_changelog (` + entryColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const transitionSQL = `
UPDATE persona_changelog
SET status = $4,
    reviewed_by = COALESCE($5, reviewed_by)
WHERE persona_id = $1 AND generation = $2 AND status = $3`

const countPendingSQL = `
SELECT count(*) FROM persona_changelog WHERE status = 'PENDING'`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Latest returns the highest-generation entry whose status is one of statuses.
// Returns domain.ErrNotFound if no such entry exists.
func (r *Repo) Latest(ctx context.Context, personaID uuid.UUID, statuses ...domain.ChangeStatus) (domain.HistoryEntry, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	entry, err := scanEntry(q.QueryRow(ctx, latestByStatusSQL, personaID, names))
	if err != nil {
		return domain.HistoryEntry{}, postgres.MapError(err, "persona_changelog", personaID)
	}
	return entry, nil
}

// Get returns a single generation of a persona.
func (r *Repo) Get(ctx context.Context, personaID uuid.UUID, generation int64) (domain.HistoryEntry, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	entry, err := scanEntry(q.QueryRow(ctx, getSQL, personaID, generation))
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("generation %d: %w",
			generation, postgres.MapError(err, "persona_changelog", personaID))
	}
	return entry, nil
}

// MaxGeneration returns the highest generation of any status, or 0 when the
// persona has no history.
func (r *Repo) MaxGeneration(ctx context.Context, personaID uuid.UUID) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var gen int64
	if err := q.QueryRow(ctx, maxGenerationSQL, personaID).Scan(&gen); err != nil {
		return 0, postgres.MapError(err, "persona_changelog", personaID)
	}
	return gen, nil
}

// History returns the entries of a persona ordered by generation. An empty
// generations slice selects every generation.
func (r *Repo) History(ctx context.Context, personaID uuid.UUID, generations []int64) ([]domain.HistoryEntry, error) {
	query := psql.Select(entryColumns).
		From("persona_changelog").
		Where("persona_id = ?", personaID).
		OrderBy("generation")
	if len(generations) > 0 {
		query = query.Where(squirrel.Eq{"generation": generations})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "persona_changelog", personaID)
	}
	return collectEntries(rows)
}

// ListPending returns pending entries across all personas, oldest first,
// together with the total number of pending entries.
func (r *Repo) ListPending(ctx context.Context, limit, offset int) ([]domain.HistoryEntry, int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, countPendingSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending changes: %w", err)
	}

	query := psql.Select(entryColumns).
		From("persona_changelog").
		Where(squirrel.Eq{"status": string(domain.ChangeStatusPending)}).
		OrderBy("created_at", "persona_id").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending changes: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Insert appends a new generation. A duplicate (persona_id, generation) or a
// second pending row maps to domain.ErrAlreadyExists.
func (r *Repo) Insert(ctx context.Context, entry domain.HistoryEntry) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	fieldsJSON, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("persona_changelog marshal fields: %w", err)
	}

	_, err = q.Exec(ctx, insertSQL,
		entry.PersonaID,
		entry.Generation,
		string(entry.Status),
		fieldsJSON,
		entry.SubmittedBy,
		uuidPtrToPgUUID(entry.ReviewedBy),
		entry.Note,
		entry.Automated,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("generation %d: %w",
			entry.Generation, postgres.MapError(err, "persona_changelog", entry.PersonaID))
	}
	return nil
}

// Transition moves the entry at generation from one status to another. A
// non-nil reviewedBy is stored on the row. It reports whether a row in status
// from matched.
func (r *Repo) Transition(ctx context.Context, personaID uuid.UUID, generation int64, from, to domain.ChangeStatus, reviewedBy *uuid.UUID) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, transitionSQL,
		personaID, generation, string(from), string(to), uuidPtrToPgUUID(reviewedBy))
	if err != nil {
		return false, fmt.Errorf("generation %d %s->%s: %w",
			generation, from, to, postgres.MapError(err, "persona_changelog", personaID))
	}
	return tag.RowsAffected() == 1, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanEntry(row pgx.Row) (domain.HistoryEntry, error) {
	var (
		e          domain.HistoryEntry
		status     string
		fieldsJSON []byte
		reviewedBy pgtype.UUID
	)
	err := row.Scan(&e.PersonaID, &e.Generation, &status, &fieldsJSON, &e.SubmittedBy,
		&reviewedBy, &e.Note, &e.Automated, &e.CreatedAt)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("persona_changelog %s/%d unmarshal fields: %w",
			e.PersonaID, e.Generation, err)
	}
	e.Status = domain.ChangeStatus(status)
	if reviewedBy.Valid {
		id := uuid.UUID(reviewedBy.Bytes)
		e.ReviewedBy = &id
	}
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]domain.HistoryEntry, error) {
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persona_changelog rows: %w", err)
	}
	return entries, nil
}

// uuidPtrToPgUUID converts a *uuid.UUID to pgtype.UUID (nil -> NULL).
func uuidPtrToPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}
