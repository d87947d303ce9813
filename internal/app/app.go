package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/adapter/badger"
	"github.com/heartmarshall/persona-registry/internal/adapter/postgres"
	pgaudit "github.com/heartmarshall/persona-registry/internal/adapter/postgres/audit"
	pgchangelog "github.com/heartmarshall/persona-registry/internal/adapter/postgres/changelog"
	pgpersona "github.com/heartmarshall/persona-registry/internal/adapter/postgres/persona"
	"github.com/heartmarshall/persona-registry/internal/config"
	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/internal/privilege"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
)

// AuditReader lists the audit trail of an entity, newest first.
type AuditReader interface {
	GetByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error)
}

// Registry is a wired persona registry on one storage backend.
type Registry struct {
	Changelog *changelog.Service
	Audit     AuditReader
	Backend   string
	// Schema is the persona field set the engine validates against.
	Schema domain.Schema

	closers []func()
}

// Close releases the storage backend.
func (r *Registry) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Open connects the configured storage backend and wires the changelog
// engine on top of it. The caller must call Close when done.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	logger.Info("opening registry",
		slog.String("version", BuildVersion()),
		slog.String("backend", cfg.Storage.Backend),
	)

	reviewers := privilege.NewRoleChecker(cfg.Changelog.ReviewerRoles, cfg.Changelog.RealmAdminRoles)
	svcCfg := ChangelogConfig(cfg.Changelog)

	switch cfg.Storage.Backend {
	case config.BackendBadger:
		db, err := badger.Open(badger.Config{
			Path:       cfg.Storage.Path,
			InMemory:   cfg.Storage.InMemory,
			SyncWrites: cfg.Storage.SyncWrites,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}

		auditRepo := badger.NewAuditRepo(db)
		svc := changelog.NewService(
			logger,
			badger.NewChangelogRepo(db),
			badger.NewPersonaRepo(db),
			auditRepo,
			badger.NewTxManager(db),
			reviewers,
			svcCfg,
		)
		return &Registry{
			Changelog: svc,
			Audit:     auditRepo,
			Backend:   config.BackendBadger,
			Schema:    svcCfg.Schema,
			closers: []func(){func() {
				if err := db.Close(); err != nil {
					logger.Error("close badger database", slog.String("error", err.Error()))
				}
			}},
		}, nil

	case config.BackendPostgres:
		if cfg.Storage.MigrateOnStart {
			applied, err := postgres.Migrate(ctx, cfg.Database.DSN)
			if err != nil {
				return nil, fmt.Errorf("app: %w", err)
			}
			logger.Info("migrations applied", slog.Int("count", len(applied)))
		}

		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}

		auditRepo := pgaudit.New(pool)
		svc := changelog.NewService(
			logger,
			pgchangelog.New(pool),
			pgpersona.New(pool),
			auditRepo,
			postgres.NewTxManager(pool),
			reviewers,
			svcCfg,
		)
		return &Registry{
			Changelog: svc,
			Audit:     auditRepo,
			Backend:   config.BackendPostgres,
			Schema:    svcCfg.Schema,
			closers:   []func(){pool.Close},
		}, nil
	}

	return nil, fmt.Errorf("app: unknown storage backend %q", cfg.Storage.Backend)
}

// Migrate applies pending schema migrations. The badger backend has no
// schema and reports nothing applied.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]int64, error) {
	if cfg.Storage.Backend != config.BackendPostgres {
		logger.Info("no migrations for backend", slog.String("backend", cfg.Storage.Backend))
		return nil, nil
	}

	applied, err := postgres.Migrate(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	logger.Info("migrations applied", slog.Int("count", len(applied)))
	return applied, nil
}

// ChangelogConfig maps the loaded settings onto the engine's configuration.
func ChangelogConfig(cfg config.ChangelogConfig) changelog.Config {
	return changelog.Config{
		Schema: domain.DefaultPersonaSchema(),
		Policy: changelog.ReviewPolicy{
			SensitiveFields: cfg.SensitiveFields,
			CategoryField:   cfg.Category(),
		},
		AutoCommit:   cfg.AutoCommit,
		ReplayNote:   cfg.ReplayNote,
		CreationNote: cfg.CreationNote,
	}
}
