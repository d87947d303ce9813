package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// PersonaRepo holds canonical records in the embedded backend.
type PersonaRepo struct {
	db  *DB
	now func() time.Time
}

// NewPersonaRepo creates a new persona repository.
func NewPersonaRepo(db *DB) *PersonaRepo {
	return &PersonaRepo{db: db, now: time.Now}
}

type personaRecord struct {
	Fields    domain.Fields `json:"fields"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Get returns the canonical record. Returns domain.ErrNotFound if it does not exist.
func (r *PersonaRepo) Get(ctx context.Context, id uuid.UUID) (domain.Persona, error) {
	var p domain.Persona
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		p, err = getPersona(txn, id)
		return err
	})
	if err != nil {
		return domain.Persona{}, mapError(err, "persona", id)
	}
	return p, nil
}

// LockForUpdate takes the persona's lock for the rest of the transaction and
// reads the canonical record. Units of work on the same persona run one after
// another; the lock is released when TxManager commits or discards. Must be
// called inside TxManager.RunInTx.
func (r *PersonaRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (domain.Persona, error) {
	st, ok := stateFromCtx(ctx)
	if !ok {
		return domain.Persona{}, fmt.Errorf("persona %s: lock for update outside transaction", id)
	}

	if err := st.lockPersona(ctx, id); err != nil {
		return domain.Persona{}, fmt.Errorf("persona %s: lock: %w", id, err)
	}

	p, err := getPersona(st.txn, id)
	if err != nil {
		return domain.Persona{}, mapError(err, "persona", id)
	}
	return p, nil
}

// Create inserts a new canonical record.
func (r *PersonaRepo) Create(ctx context.Context, p domain.Persona) error {
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, personaKey(p.ID)); err != nil {
			return err
		} else if exists {
			return domain.ErrAlreadyExists
		}
		return putPersona(txn, p.ID, personaRecord{Fields: p.Fields, UpdatedAt: p.UpdatedAt})
	})
	return mapError(err, "persona", p.ID)
}

// ApplyFields overwrites the given fields of the record and leaves all others
// untouched. It reports whether the record existed.
func (r *PersonaRepo) ApplyFields(ctx context.Context, id uuid.UUID, fields domain.Fields) (bool, error) {
	found := false
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		p, err := getPersona(txn, id)
		if err != nil {
			if errorsIsNotFound(err) {
				return nil
			}
			return err
		}
		found = true
		return putPersona(txn, id, personaRecord{Fields: p.Fields.Overlay(fields), UpdatedAt: r.now()})
	})
	if err != nil {
		return false, mapError(err, "persona", id)
	}
	return found, nil
}

func getPersona(txn *badger.Txn, id uuid.UUID) (domain.Persona, error) {
	item, err := txn.Get(personaKey(id))
	if err != nil {
		return domain.Persona{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Persona{}, err
	}
	return decodePersona(id, raw)
}

func decodePersona(id uuid.UUID, raw []byte) (domain.Persona, error) {
	var rec personaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Persona{}, fmt.Errorf("persona %s decode: %w", id, err)
	}
	return domain.Persona{ID: id, Fields: rec.Fields, UpdatedAt: rec.UpdatedAt}, nil
}

func putPersona(txn *badger.Txn, id uuid.UUID, rec personaRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persona %s encode: %w", id, err)
	}
	return txn.Set(personaKey(id), data)
}
