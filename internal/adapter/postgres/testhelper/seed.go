package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedPersona creates a canonical record with the default schema's fields and
// its initial committed generation 1. Extra fields override the defaults.
// Returns the persona as stored.
func SeedPersona(t *testing.T, pool *pgxpool.Pool, extra domain.Fields) domain.Persona {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()

	fields := domain.DefaultPersonaSchema().Complete(domain.Fields{
		domain.FieldID: domain.PersonaIDValue(id),
		"display_name": domain.String("Test " + suffix),
		"given_names":  domain.String("Test"),
		"family_name":  domain.String("Persona " + suffix),
		"is_cde_realm": domain.Bool(true),
		"is_member":    domain.Bool(true),
		"balance":      domain.MustDecimal("0.00"),
	}).Overlay(extra)

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("testhelper: SeedPersona marshal: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO personas (id, fields, updated_at) VALUES ($1, $2, $3)`,
		id, fieldsJSON, now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPersona insert persona: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO persona_changelog (persona_id, generation, status, fields, submitted_by, note, created_at)
		 VALUES ($1, 1, 'COMMITTED', $2, $3, 'Created.', $4)`,
		id, fieldsJSON, id, now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPersona insert changelog: %v", err)
	}

	return domain.Persona{ID: id, Fields: fields, UpdatedAt: now}
}

// SeedEntry appends a changelog row for an existing persona.
func SeedEntry(t *testing.T, pool *pgxpool.Pool, personaID uuid.UUID, generation int64, status domain.ChangeStatus, fields domain.Fields) {
	t.Helper()

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("testhelper: SeedEntry marshal: %v", err)
	}

	_, err = pool.Exec(context.Background(),
		`INSERT INTO persona_changelog (persona_id, generation, status, fields, submitted_by, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, 'Seeded.', now())`,
		personaID, generation, string(status), fieldsJSON, personaID,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedEntry insert: %v", err)
	}
}
