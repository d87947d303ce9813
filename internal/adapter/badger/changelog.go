package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// ChangelogRepo is the version store of the embedded backend.
type ChangelogRepo struct {
	db *DB
}

// NewChangelogRepo creates a new changelog repository.
func NewChangelogRepo(db *DB) *ChangelogRepo {
	return &ChangelogRepo{db: db}
}

type entryRecord struct {
	Status      domain.ChangeStatus `json:"status"`
	Fields      domain.Fields       `json:"fields"`
	SubmittedBy uuid.UUID           `json:"submitted_by"`
	ReviewedBy  *uuid.UUID          `json:"reviewed_by,omitempty"`
	Note        string              `json:"note"`
	Automated   bool                `json:"automated"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Latest returns the highest-generation entry whose status is one of statuses.
// Returns domain.ErrNotFound if no such entry exists.
func (r *ChangelogRepo) Latest(ctx context.Context, personaID uuid.UUID, statuses ...domain.ChangeStatus) (domain.HistoryEntry, error) {
	var found *domain.HistoryEntry

	err := r.db.view(ctx, func(txn *badger.Txn) error {
		prefix := historyPrefix(personaID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, Reverse: true, PrefetchValues: true})
		defer it.Close()

		for it.Seek(seekEnd(prefix)); it.ValidForPrefix(prefix); it.Next() {
			e, err := decodeEntry(personaID, it.Item())
			if err != nil {
				return err
			}
			if slices.Contains(statuses, e.Status) {
				found = &e
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("persona_changelog %s: %w", personaID, err)
	}
	if found == nil {
		return domain.HistoryEntry{}, fmt.Errorf("persona_changelog %s: %w", personaID, domain.ErrNotFound)
	}
	return *found, nil
}

// Get returns a single generation of a persona.
func (r *ChangelogRepo) Get(ctx context.Context, personaID uuid.UUID, generation int64) (domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		e, err = getEntry(txn, personaID, generation)
		return err
	})
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("generation %d: %w", generation, mapError(err, "persona_changelog", personaID))
	}
	return e, nil
}

// MaxGeneration returns the highest generation of any status, or 0 when the
// persona has no history.
func (r *ChangelogRepo) MaxGeneration(ctx context.Context, personaID uuid.UUID) (int64, error) {
	var gen int64
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		prefix := historyPrefix(personaID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, Reverse: true})
		defer it.Close()

		it.Seek(seekEnd(prefix))
		if it.ValidForPrefix(prefix) {
			gen = generationFromKey(it.Item().Key())
		}
		return nil
	})
	if err != nil {
		return 0, mapError(err, "persona_changelog", personaID)
	}
	return gen, nil
}

// History returns the entries of a persona ordered by generation. An empty
// generations slice selects every generation.
func (r *ChangelogRepo) History(ctx context.Context, personaID uuid.UUID, generations []int64) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		prefix := historyPrefix(personaID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if len(generations) > 0 && !slices.Contains(generations, generationFromKey(it.Item().Key())) {
				continue
			}
			e, err := decodeEntry(personaID, it.Item())
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "persona_changelog", personaID)
	}
	return entries, nil
}

// ListPending returns pending entries across all personas, oldest first,
// together with the total number of pending entries.
func (r *ChangelogRepo) ListPending(ctx context.Context, limit, offset int) ([]domain.HistoryEntry, int, error) {
	var pending []domain.HistoryEntry
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: pendingPrefix, PrefetchValues: true})
		defer it.Close()

		for it.Seek(pendingPrefix); it.ValidForPrefix(pendingPrefix); it.Next() {
			personaID := personaIDFromPendingKey(it.Item().Key())
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := getEntry(txn, personaID, int64(binary.BigEndian.Uint64(raw)))
			if err != nil {
				return err
			}
			pending = append(pending, e)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list pending changes: %w", err)
	}

	slices.SortFunc(pending, func(a, b domain.HistoryEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.PersonaID[:], b.PersonaID[:])
	})

	total := len(pending)
	start := min(offset, total)
	end := min(start+limit, total)
	return pending[start:end], total, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Insert appends a new generation. A duplicate generation or a second pending
// entry maps to domain.ErrAlreadyExists.
func (r *ChangelogRepo) Insert(ctx context.Context, entry domain.HistoryEntry) error {
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		key := entryKey(entry.PersonaID, entry.Generation)
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if exists {
			return domain.ErrAlreadyExists
		}

		if entry.Status == domain.ChangeStatusPending {
			if err := setPending(txn, entry.PersonaID, entry.Generation); err != nil {
				return err
			}
		}
		return putEntry(txn, entry)
	})
	if err != nil {
		return fmt.Errorf("generation %d: %w", entry.Generation, mapError(err, "persona_changelog", entry.PersonaID))
	}
	return nil
}

// Transition moves the entry at generation from one status to another. A
// non-nil reviewedBy is stored on the entry. It reports whether an entry in
// status from matched.
func (r *ChangelogRepo) Transition(ctx context.Context, personaID uuid.UUID, generation int64, from, to domain.ChangeStatus, reviewedBy *uuid.UUID) (bool, error) {
	matched := false
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		e, err := getEntry(txn, personaID, generation)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.Status != from {
			return nil
		}

		if from == domain.ChangeStatusPending {
			if err := txn.Delete(pendingKey(personaID)); err != nil {
				return err
			}
		}
		if to == domain.ChangeStatusPending {
			if err := setPending(txn, personaID, generation); err != nil {
				return err
			}
		}

		e.Status = to
		if reviewedBy != nil {
			e.ReviewedBy = reviewedBy
		}
		matched = true
		return putEntry(txn, e)
	})
	if err != nil {
		return false, fmt.Errorf("generation %d %s->%s: %w", generation, from, to, mapError(err, "persona_changelog", personaID))
	}
	return matched, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func setPending(txn *badger.Txn, personaID uuid.UUID, generation int64) error {
	if exists, err := keyExists(txn, pendingKey(personaID)); err != nil {
		return err
	} else if exists {
		return domain.ErrAlreadyExists
	}
	return txn.Set(pendingKey(personaID), binary.BigEndian.AppendUint64(nil, uint64(generation)))
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func getEntry(txn *badger.Txn, personaID uuid.UUID, generation int64) (domain.HistoryEntry, error) {
	item, err := txn.Get(entryKey(personaID, generation))
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return decodeEntry(personaID, item)
}

func decodeEntry(personaID uuid.UUID, item *badger.Item) (domain.HistoryEntry, error) {
	var rec entryRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	return domain.HistoryEntry{
		PersonaID:   personaID,
		Generation:  generationFromKey(item.Key()),
		Status:      rec.Status,
		Fields:      rec.Fields,
		SubmittedBy: rec.SubmittedBy,
		ReviewedBy:  rec.ReviewedBy,
		Note:        rec.Note,
		Automated:   rec.Automated,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

func putEntry(txn *badger.Txn, e domain.HistoryEntry) error {
	data, err := json.Marshal(entryRecord{
		Status:      e.Status,
		Fields:      e.Fields,
		SubmittedBy: e.SubmittedBy,
		ReviewedBy:  e.ReviewedBy,
		Note:        e.Note,
		Automated:   e.Automated,
		CreatedAt:   e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return txn.Set(entryKey(e.PersonaID, e.Generation), data)
}
