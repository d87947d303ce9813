package changelog

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

const (
	DefaultPendingLimit = 50
	MaxPendingLimit     = 200
)

// SubmitInput holds the parameters of a proposed change.
type SubmitInput struct {
	PersonaID uuid.UUID
	// Fields must contain the identity field matching PersonaID. Only the
	// fields present are changed.
	Fields domain.Fields
	// ExpectedGeneration is the generation the caller's view was based on.
	// nil skips the optimistic concurrency check.
	ExpectedGeneration *int64
	// MayWait is false for urgent changes that must commit now, displacing a
	// pending change if there is one.
	MayWait     bool
	Note        string
	ForceReview bool
	Automated   bool
}

// Validate checks all fields against the schema and collects all errors.
func (i SubmitInput) Validate(schema domain.Schema) error {
	var errs []domain.FieldError

	if i.PersonaID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "persona_id", Message: "required"})
	}
	if len(i.Fields) == 0 {
		errs = append(errs, domain.FieldError{Field: "fields", Message: "required"})
	} else if !domain.ValuesEqual(i.Fields.Get(domain.FieldID), domain.PersonaIDValue(i.PersonaID)) {
		errs = append(errs, domain.FieldError{Field: "fields.id", Message: "must match persona_id"})
	}
	if strings.TrimSpace(i.Note) == "" {
		errs = append(errs, domain.FieldError{Field: "note", Message: "required"})
	}
	if !i.MayWait && i.ExpectedGeneration != nil {
		errs = append(errs, domain.FieldError{Field: "expected_generation", Message: "must be empty for non-waiting changes"})
	}
	if i.ExpectedGeneration != nil && *i.ExpectedGeneration < 1 {
		errs = append(errs, domain.FieldError{Field: "expected_generation", Message: "must be positive"})
	}

	if err := schema.Validate(i.Fields, false); err != nil {
		errs = append(errs, prefixFieldErrors(err)...)
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ResolveInput holds the parameters of a review decision.
type ResolveInput struct {
	PersonaID  uuid.UUID
	Generation int64
	Accept     bool
	// MarkReviewed records the caller as reviewer of an accepted change.
	MarkReviewed bool
}

// Validate checks all fields and collects all errors.
func (i ResolveInput) Validate() error {
	var errs []domain.FieldError

	if i.PersonaID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "persona_id", Message: "required"})
	}
	if i.Generation < 1 {
		errs = append(errs, domain.FieldError{Field: "generation", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// CreateInput holds the initial state of a new persona.
type CreateInput struct {
	// Fields missing from the schema's field set get their zero value.
	Fields domain.Fields
	// Note defaults to the configured creation note.
	Note string
}

// Validate checks all fields against the schema and collects all errors.
func (i CreateInput) Validate(schema domain.Schema) error {
	var errs []domain.FieldError

	if _, ok := i.Fields[domain.FieldID]; ok {
		errs = append(errs, domain.FieldError{Field: "fields.id", Message: "assigned by the registry"})
	}
	if err := schema.Validate(i.Fields.Without(domain.FieldID), false); err != nil {
		errs = append(errs, prefixFieldErrors(err)...)
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ListPendingInput holds the paging parameters of the review queue.
type ListPendingInput struct {
	Limit  int
	Offset int
}

// Validate checks all fields and collects all errors.
func (i ListPendingInput) Validate() error {
	var errs []domain.FieldError

	if i.Limit < 0 || i.Limit > MaxPendingLimit {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be between 0 and 200"})
	}
	if i.Offset < 0 {
		errs = append(errs, domain.FieldError{Field: "offset", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// prefixFieldErrors nests schema errors under "fields.".
func prefixFieldErrors(err error) []domain.FieldError {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return []domain.FieldError{{Field: "fields", Message: err.Error()}}
	}
	out := make([]domain.FieldError, len(ve.Errors))
	for i, fe := range ve.Errors {
		out[i] = domain.FieldError{Field: "fields." + fe.Field, Message: fe.Message}
	}
	return out
}
