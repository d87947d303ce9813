package changelog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_SeedsCommittedGeneration(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())
	callerID := uuid.New()
	ctx := ctxutil.WithUserID(context.Background(), callerID)

	p, err := env.svc.Create(ctx, CreateInput{Fields: domain.Fields{
		"display_name": domain.String("Ben"),
		"is_cde_realm": domain.Bool(true),
	}})
	require.NoError(t, err)

	assert.Equal(t, domain.PersonaIDValue(p.ID), p.Fields.Get(domain.FieldID))
	assert.Equal(t, domain.String("Ben"), p.Fields.Get("display_name"))
	assert.Equal(t, domain.String(""), p.Fields.Get("given_names"), "missing fields get their zero value")
	assert.Equal(t, domain.Null{}, p.Fields.Get("birthday"))

	entries := env.store.entries(p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Generation)
	assert.Equal(t, domain.ChangeStatusCommitted, entries[0].Status)
	assert.Equal(t, DefaultCreationNote, entries[0].Note)
	require.NotNil(t, entries[0].ReviewedBy)
	assert.Equal(t, callerID, *entries[0].ReviewedBy)
	assert.Equal(t, p.Fields, env.store.record(p.ID).Fields)

	assert.Equal(t, []domain.AuditAction{domain.AuditActionCreate}, auditActions(env.audit))

	gen, err := env.svc.GetGeneration(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestCreate_ThenSubmit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())
	ctx := userCtx()

	p, err := env.svc.Create(ctx, CreateInput{
		Fields: domain.Fields{"display_name": domain.String("Ben")},
		Note:   "signed up at the fair",
	})
	require.NoError(t, err)

	res, err := env.svc.Submit(ctx, SubmitInput{
		PersonaID:          p.ID,
		Fields:             changeOf(p, domain.Fields{"birthday": newBirthday}),
		ExpectedGeneration: gen(1),
		MayWait:            true,
		Note:               "birthday added",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome, "review only applies inside the category")
}

func TestCreate_RejectsIdentityField(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())

	_, err := env.svc.Create(userCtx(), CreateInput{Fields: domain.Fields{
		domain.FieldID: domain.String("chosen"),
	}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.Create(context.Background(), CreateInput{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestGetGeneration(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())
	p := env.seedPersona(3, nil)
	env.submitSensitive(t, p)

	current, err := env.svc.GetGeneration(context.Background(), p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), current)

	committed, err := env.svc.GetGeneration(context.Background(), p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), committed)

	_, err = env.svc.GetGeneration(context.Background(), uuid.New(), false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())
	p := env.seedPersona(3, nil)

	all, err := env.svc.GetHistory(context.Background(), p.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := env.svc.GetHistory(context.Background(), p.ID, []int64{2, 99})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, int64(2), some[2].Generation)

	_, err = env.svc.GetHistory(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPersona(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())
	p := env.seedPersona(1, nil)

	got, err := env.svc.GetPersona(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Fields, got.Fields)

	_, err = env.svc.GetPersona(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, defaultConfig())
	first := env.seedPersona(1, nil)
	second := env.seedPersona(1, nil)
	env.seedPersona(1, nil)

	env.submitSensitive(t, first)
	_, err := env.svc.Submit(userCtx(), SubmitInput{
		PersonaID: second.ID,
		Fields: changeOf(second, domain.Fields{
			"given_names": domain.String("Anne"),
			"telephone":   domain.String("555"),
		}),
		MayWait: true,
		Note:    "spelling",
	})
	require.NoError(t, err)

	page, err := env.svc.ListPending(context.Background(), ListPendingInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, first.ID, page.Items[0].Entry.PersonaID)
	assert.Equal(t, []string{"birthday"}, page.Items[0].Changed)
	assert.Equal(t, second.ID, page.Items[1].Entry.PersonaID)
	assert.Equal(t, []string{"given_names", "telephone"}, page.Items[1].Changed)

	page, err = env.svc.ListPending(context.Background(), ListPendingInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].Entry.PersonaID)

	_, err = env.svc.ListPending(context.Background(), ListPendingInput{Limit: MaxPendingLimit + 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
