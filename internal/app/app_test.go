package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/persona-registry/internal/config"
	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

func badgerConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Backend: config.BackendBadger, InMemory: true},
		Changelog: config.ChangelogConfig{
			SensitiveFields: []string{"birthday", "family_name", "given_names"},
			CategoryField:   "is_cde_realm",
			ReplayNote:      "Displaced change replayed.",
			CreationNote:    "Persona created.",
			ReviewerRoles:   []string{"core_admin"},
			RealmAdminRoles: map[string]string{"is_cde_realm": "cde_admin"},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_BadgerEndToEnd(t *testing.T) {
	ctx := context.Background()
	reg, err := Open(ctx, badgerConfig(), discardLogger())
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	assert.Equal(t, config.BackendBadger, reg.Backend)

	member := ctxutil.WithUserID(ctx, uuid.New())
	admin := ctxutil.WithRoles(ctxutil.WithUserID(ctx, uuid.New()), "cde_admin")

	p, err := reg.Changelog.Create(member, changelog.CreateInput{Fields: domain.Fields{
		"display_name": domain.String("Anna"),
		"is_cde_realm": domain.Bool(true),
	}})
	require.NoError(t, err)

	birthday := domain.Date{Year: 1990, Month: time.May, Day: 1}
	res, err := reg.Changelog.Submit(member, changelog.SubmitInput{
		PersonaID:          p.ID,
		Fields:             domain.Fields{domain.FieldID: domain.PersonaIDValue(p.ID), "birthday": birthday},
		ExpectedGeneration: ptr(int64(1)),
		MayWait:            true,
		Note:               "birthday added",
	})
	require.NoError(t, err)
	assert.Equal(t, changelog.OutcomeDeferred, res.Outcome)

	code, err := reg.Changelog.Resolve(admin, changelog.ResolveInput{
		PersonaID:    p.ID,
		Generation:   2,
		Accept:       true,
		MarkReviewed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), code)

	got, err := reg.Changelog.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, birthday, got.Fields.Get("birthday"))

	// A realm admin's own sensitive change commits at once.
	res, err = reg.Changelog.Submit(admin, changelog.SubmitInput{
		PersonaID: p.ID,
		Fields:    domain.Fields{domain.FieldID: domain.PersonaIDValue(p.ID), "family_name": domain.String("Muster")},
		MayWait:   true,
		Note:      "surname",
	})
	require.NoError(t, err)
	assert.Equal(t, changelog.OutcomeCommitted, res.Outcome)
	assert.Equal(t, int64(3), res.Generation)

	records, err := reg.Audit.GetByEntity(ctx, domain.EntityTypePersona, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, domain.AuditActionCommitted, records[0].Action)
	assert.Equal(t, domain.AuditActionCreate, records[3].Action)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := badgerConfig()
	cfg.Storage.Backend = "sqlite"

	_, err := Open(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestMigrate_BadgerIsNoOp(t *testing.T) {
	applied, err := Migrate(context.Background(), badgerConfig(), discardLogger())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestChangelogConfig(t *testing.T) {
	cfg := badgerConfig().Changelog
	cfg.CategoryField = config.NoCategory
	cfg.AutoCommit = true

	got := ChangelogConfig(cfg)
	assert.Equal(t, "", got.Policy.CategoryField)
	assert.Equal(t, []string{"birthday", "family_name", "given_names"}, got.Policy.SensitiveFields)
	assert.True(t, got.AutoCommit)
	assert.True(t, got.Schema.Has("birthday"))
}

func ptr[T any](v T) *T { return &v }
