package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// PostgreSQL error codes the repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// ConstraintOnePending is the partial unique index that admits a single
// PENDING row per persona.
const ConstraintOnePending = "ux_persona_changelog_one_pending"

// errPendingExists is what a second pending row for a persona maps to.
var errPendingExists = fmt.Errorf("persona already has a pending change: %w", domain.ErrAlreadyExists)

// MapError converts pgx/pgconn errors to domain errors, prefixed with the
// entity and key: "persona_changelog <id>: not found". Errors it does not
// recognise, context errors included, are wrapped unchanged.
func MapError(err error, entity string, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = domain.ErrNotFound
	case errors.As(err, &pgErr):
		err = mapPgError(pgErr)
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == ConstraintOnePending {
			return errPendingExists
		}
		return domain.ErrAlreadyExists
	case codeForeignKeyViolation:
		return domain.ErrNotFound
	case codeCheckViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrValidation)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%s: %w", pgErr.Message, domain.ErrConflict)
	}
	return pgErr
}
