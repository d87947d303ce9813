// Package badger provides the embedded persona store backed by BadgerDB.
//
// It is used for offline deployments where no PostgreSQL server is available.
// The key layout is:
//
//	persona/<id>                 canonical record
//	changelog/<id>/<generation>  history entries, generation big-endian
//	pending/<id>                 generation of the single pending entry
//	audit/<unix-nanos>/<id>      audit records
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, it is discarded.
	Logger *slog.Logger
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps an open BadgerDB. It is safe for concurrent use.
type DB struct {
	db    *badger.DB
	locks personaLocks
}

// Open opens the database at cfg.Path, or in memory if cfg.InMemory is set.
// The caller must call Close when done.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// view runs fn in the transaction carried by ctx, or in a fresh read-only one.
func (d *DB) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if st, ok := stateFromCtx(ctx); ok {
		return fn(st.txn)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// update runs fn in the transaction carried by ctx, or in a fresh read-write one.
func (d *DB) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if st, ok := stateFromCtx(ctx); ok {
		st.dirty = true
		return fn(st.txn)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// mapError converts badger errors to domain errors.
func mapError(err error, entity string, key fmt.Stringer) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s %s: %w", entity, key, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", entity, key, err)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}
