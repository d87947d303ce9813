package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("conflict")
)

// ErrContractViolation matches every ContractViolation. These errors mean an
// invariant of the changelog was breached; the enclosing transaction is rolled back.
var ErrContractViolation = errors.New("changelog contract violation")

// Contract violation kinds.
var (
	ErrNoCommittedState             = errors.New("no committed state")
	ErrRecordHistoryDivergence      = errors.New("record and history diverge")
	ErrNonWaitingChangeNotCommitted = errors.New("non-waiting change not committed")
	ErrConflictingPendingChange     = errors.New("conflicting pending change")
	ErrEntityVanished               = errors.New("entity vanished")
)

// ContractViolation is a fatal changelog error for one persona.
type ContractViolation struct {
	Kind      error
	PersonaID uuid.UUID
	Detail    string
}

func (e *ContractViolation) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("persona %s: %v", e.PersonaID, e.Kind)
	}
	return fmt.Sprintf("persona %s: %v: %s", e.PersonaID, e.Kind, e.Detail)
}

// Is makes errors.Is match both ErrContractViolation and the specific kind.
func (e *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation || target == e.Kind
}

// NewContractViolation creates a ContractViolation of the given kind.
func NewContractViolation(kind error, personaID uuid.UUID, detail string) *ContractViolation {
	return &ContractViolation{Kind: kind, PersonaID: personaID, Detail: detail}
}

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s — %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}
