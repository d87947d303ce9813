package changelog

//go:generate moq -out audit_logger_mock_test.go -pkg changelog . auditLogger
//go:generate moq -out tx_manager_mock_test.go -pkg changelog . txManager
//go:generate moq -out reviewer_checker_mock_test.go -pkg changelog . reviewerChecker

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// testEnv wires a Service to an in-memory store. Calls made as reviewerID are
// treated as coming from a relative reviewer.
type testEnv struct {
	store      *memStore
	audit      *auditLoggerMock
	reviewers  *reviewerCheckerMock
	svc        *Service
	reviewerID uuid.UUID
}

func defaultConfig() Config {
	return Config{
		Schema: domain.DefaultPersonaSchema(),
		Policy: DefaultReviewPolicy(),
	}
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	env := &testEnv{
		store:      newMemStore(),
		audit:      defaultAuditMock(),
		reviewerID: uuid.New(),
	}
	env.reviewers = &reviewerCheckerMock{
		IsRelativeReviewerFunc: func(ctx context.Context, personaID uuid.UUID, fields domain.Fields) (bool, error) {
			id, _ := ctxutil.UserIDFromCtx(ctx)
			return id == env.reviewerID, nil
		},
	}
	env.svc = NewService(
		slog.Default(),
		memHistory{env.store},
		memPersonas{env.store},
		env.audit,
		env.store,
		env.reviewers,
		cfg,
	)
	env.svc.now = tickingClock()
	return env
}

// defaultTxMock returns a txManagerMock that simply calls the function with the same context.
func defaultTxMock() *txManagerMock {
	return &txManagerMock{
		RunInTxFunc: func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	}
}

// defaultAuditMock returns an auditLoggerMock that always succeeds.
func defaultAuditMock() *auditLoggerMock {
	return &auditLoggerMock{
		LogFunc: func(ctx context.Context, record domain.AuditRecord) error {
			return nil
		},
	}
}

// tickingClock returns a clock that advances one second per call, so entries
// created in one test have distinct, ordered timestamps.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func (e *testEnv) reviewerCtx() context.Context {
	return ctxutil.WithUserID(context.Background(), e.reviewerID)
}

func userCtx() context.Context {
	return ctxutil.WithUserID(context.Background(), uuid.New())
}

// seedPersona stores a persona with committed generations 1..gens.
func (e *testEnv) seedPersona(gens int64, extra domain.Fields) domain.Persona {
	return e.store.seed(seedFields(extra), gens)
}

func seedFields(extra domain.Fields) domain.Fields {
	base := domain.Fields{
		"display_name": domain.String("Anna Muster"),
		"given_names":  domain.String("Anna"),
		"family_name":  domain.String("Muster"),
		"birthday":     domain.Date{Year: 1990, Month: time.May, Day: 1},
		"balance":      domain.MustDecimal("10.00"),
		"is_cde_realm": domain.Bool(true),
		"is_member":    domain.Bool(true),
	}
	return domain.DefaultPersonaSchema().Complete(base.Overlay(extra))
}

// changeOf builds the field set of a proposal for p.
func changeOf(p domain.Persona, fields domain.Fields) domain.Fields {
	out := fields.Clone()
	out[domain.FieldID] = domain.PersonaIDValue(p.ID)
	return out
}

func gen(n int64) *int64 { return &n }

func auditActions(m *auditLoggerMock) []domain.AuditAction {
	var out []domain.AuditAction
	for _, c := range m.LogCalls() {
		out = append(out, c.Record.Action)
	}
	return out
}

// Status shorthands for history assertions.
const (
	C = domain.ChangeStatusCommitted
	P = domain.ChangeStatusPending
	S = domain.ChangeStatusSuperseded
	D = domain.ChangeStatusDisplaced
	N = domain.ChangeStatusNacked
)

var newBirthday = domain.Date{Year: 1991, Month: time.June, Day: 2}

// submitSensitive leaves generation gens+1 pending with a birthday change by
// a non-reviewer.
func (e *testEnv) submitSensitive(t *testing.T, p domain.Persona) {
	t.Helper()
	res, err := e.svc.Submit(userCtx(), SubmitInput{
		PersonaID: p.ID,
		Fields:    changeOf(p, domain.Fields{"birthday": newBirthday}),
		MayWait:   true,
		Note:      "typo in birthday",
	})
	if err != nil {
		t.Fatalf("seed pending change: %v", err)
	}
	if res.Outcome != OutcomeDeferred {
		t.Fatalf("seed pending change: outcome %s, want %s", res.Outcome, OutcomeDeferred)
	}
}
