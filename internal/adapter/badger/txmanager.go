package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds how often RunInTx re-runs a unit of work that lost
// a write conflict.
const DefaultMaxAttempts = 5

type txStateKey struct{}

// txState is the transaction a unit of work runs in, plus the persona locks
// it holds.
type txState struct {
	db    *DB
	txn   *badger.Txn
	dirty bool
	held  map[uuid.UUID]func()
}

func withState(ctx context.Context, st *txState) context.Context {
	return context.WithValue(ctx, txStateKey{}, st)
}

func stateFromCtx(ctx context.Context) (*txState, bool) {
	st, ok := ctx.Value(txStateKey{}).(*txState)
	return st, ok
}

// lockPersona takes the lock of id unless the transaction already holds it.
// A snapshot opened before the lock was granted can predate the previous
// holder's commit, so a transaction that has not written yet continues on a
// fresh one.
func (st *txState) lockPersona(ctx context.Context, id uuid.UUID) error {
	if _, ok := st.held[id]; ok {
		return nil
	}
	unlock, err := st.db.locks.acquire(ctx, id)
	if err != nil {
		return err
	}
	st.held[id] = unlock

	if !st.dirty {
		st.txn.Discard()
		st.txn = st.db.db.NewTransaction(true)
	}
	return nil
}

func (st *txState) release() {
	st.txn.Discard()
	for _, unlock := range st.held {
		unlock()
	}
	clear(st.held)
}

// TxManager runs units of work in serializable BadgerDB transactions.
type TxManager struct {
	db          *DB
	maxAttempts int
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db, maxAttempts: DefaultMaxAttempts}
}

// RunInTx executes fn within a read-write transaction and commits on success.
// Persona locks taken by PersonaRepo.LockForUpdate are held until the commit
// finishes. When the commit still fails with badger.ErrConflict, a concurrent
// transaction changed a key fn read without holding the same lock; the whole
// of fn is run again on fresh state. Nested calls join the outer transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := stateFromCtx(ctx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = m.runOnce(ctx, fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	st := &txState{
		db:   m.db,
		txn:  m.db.db.NewTransaction(true),
		held: make(map[uuid.UUID]func()),
	}
	defer st.release()

	if err := fn(withState(ctx, st)); err != nil {
		return err
	}

	if err := st.txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
