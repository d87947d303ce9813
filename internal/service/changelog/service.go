package changelog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

type historyRepo interface {
	Latest(ctx context.Context, personaID uuid.UUID, statuses ...domain.ChangeStatus) (domain.HistoryEntry, error)
	Get(ctx context.Context, personaID uuid.UUID, generation int64) (domain.HistoryEntry, error)
	MaxGeneration(ctx context.Context, personaID uuid.UUID) (int64, error)
	History(ctx context.Context, personaID uuid.UUID, generations []int64) ([]domain.HistoryEntry, error)
	ListPending(ctx context.Context, limit, offset int) ([]domain.HistoryEntry, int, error)
	Insert(ctx context.Context, entry domain.HistoryEntry) error
	Transition(ctx context.Context, personaID uuid.UUID, generation int64, from, to domain.ChangeStatus, reviewedBy *uuid.UUID) (bool, error)
}

type personaRepo interface {
	Create(ctx context.Context, p domain.Persona) error
	Get(ctx context.Context, id uuid.UUID) (domain.Persona, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (domain.Persona, error)
	ApplyFields(ctx context.Context, id uuid.UUID, fields domain.Fields) (bool, error)
}

type auditLogger interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type reviewerChecker interface {
	IsRelativeReviewer(ctx context.Context, personaID uuid.UUID, fields domain.Fields) (bool, error)
}

// Config holds the deployment settings of the changelog engine.
type Config struct {
	// Schema is the persona field set. Input is checked against it once, on entry.
	Schema domain.Schema

	// Policy decides which changes need a reviewer.
	Policy ReviewPolicy

	// AutoCommit commits every change immediately, regardless of Policy.
	// Used by offline deployments that have no reviewers.
	AutoCommit bool

	// ReplayNote is the note of the generation that re-applies a displaced change.
	ReplayNote string

	// CreationNote is the note of generation 1 when Create is called without one.
	CreationNote string
}

const (
	DefaultReplayNote   = "Displaced change replayed."
	DefaultCreationNote = "Persona created."
)

// Service is the persona change engine. It owns generation numbering and all
// status transitions of the version store.
type Service struct {
	history   historyRepo
	personas  personaRepo
	audit     auditLogger
	tx        txManager
	reviewers reviewerChecker
	cfg       Config
	telemetry *telemetry
	now       func() time.Time
	log       *slog.Logger
}

// NewService creates a new changelog service.
func NewService(
	log *slog.Logger,
	history historyRepo,
	personas personaRepo,
	audit auditLogger,
	tx txManager,
	reviewers reviewerChecker,
	cfg Config,
) *Service {
	if cfg.ReplayNote == "" {
		cfg.ReplayNote = DefaultReplayNote
	}
	if cfg.CreationNote == "" {
		cfg.CreationNote = DefaultCreationNote
	}
	return &Service{
		history:   history,
		personas:  personas,
		audit:     audit,
		tx:        tx,
		reviewers: reviewers,
		cfg:       cfg,
		telemetry: newTelemetry(nil, nil),
		now:       time.Now,
		log:       log.With("service", "changelog"),
	}
}
