package changelog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// memStore is an in-memory version store and canonical record. RunInTx
// serializes units of work and restores the previous state when fn fails.
type memStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	personas map[uuid.UUID]domain.Persona
	history  map[uuid.UUID][]domain.HistoryEntry

	// vanish makes ApplyFields report a missing record.
	vanish bool
	// staleTo makes Transition report no match when moving an entry to
	// this status, as if another writer had moved it first.
	staleTo domain.ChangeStatus
}

// memHistory and memPersonas are the two repository views of a memStore.
type (
	memHistory  struct{ *memStore }
	memPersonas struct{ *memStore }
)

var (
	_ historyRepo = memHistory{}
	_ personaRepo = memPersonas{}
	_ txManager   = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		personas: make(map[uuid.UUID]domain.Persona),
		history:  make(map[uuid.UUID][]domain.HistoryEntry),
	}
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	personas := maps.Clone(m.personas)
	history := make(map[uuid.UUID][]domain.HistoryEntry, len(m.history))
	for id, entries := range m.history {
		history[id] = slices.Clone(entries)
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.personas, m.history = personas, history
		m.mu.Unlock()
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// personaRepo
// ---------------------------------------------------------------------------

func (m memPersonas) Create(_ context.Context, p domain.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.personas[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.personas[p.ID] = p
	return nil
}

func (m memPersonas) Get(_ context.Context, id uuid.UUID) (domain.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return domain.Persona{}, fmt.Errorf("persona %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (m memPersonas) LockForUpdate(ctx context.Context, id uuid.UUID) (domain.Persona, error) {
	return m.Get(ctx, id)
}

func (m memPersonas) ApplyFields(_ context.Context, id uuid.UUID, fields domain.Fields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok || m.vanish {
		return false, nil
	}
	p.Fields = p.Fields.Overlay(fields)
	m.personas[id] = p
	return true, nil
}

// ---------------------------------------------------------------------------
// historyRepo
// ---------------------------------------------------------------------------

func (m memHistory) Latest(_ context.Context, personaID uuid.UUID, statuses ...domain.ChangeStatus) (domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[personaID]
	for i := len(entries) - 1; i >= 0; i-- {
		if slices.Contains(statuses, entries[i].Status) {
			return entries[i], nil
		}
	}
	return domain.HistoryEntry{}, fmt.Errorf("persona_changelog %s: %w", personaID, domain.ErrNotFound)
}

func (m memHistory) Get(_ context.Context, personaID uuid.UUID, generation int64) (domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.history[personaID] {
		if e.Generation == generation {
			return e, nil
		}
	}
	return domain.HistoryEntry{}, fmt.Errorf("persona_changelog %s/%d: %w", personaID, generation, domain.ErrNotFound)
}

func (m memHistory) MaxGeneration(_ context.Context, personaID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[personaID]
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Generation, nil
}

func (m memHistory) History(_ context.Context, personaID uuid.UUID, generations []int64) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range m.history[personaID] {
		if len(generations) == 0 || slices.Contains(generations, e.Generation) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m memHistory) ListPending(_ context.Context, limit, offset int) ([]domain.HistoryEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []domain.HistoryEntry
	for _, entries := range m.history {
		for _, e := range entries {
			if e.IsPending() {
				pending = append(pending, e)
			}
		}
	}
	slices.SortFunc(pending, func(a, b domain.HistoryEntry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	total := len(pending)
	start := min(offset, total)
	end := min(start+limit, total)
	return pending[start:end], total, nil
}

func (m memHistory) Insert(_ context.Context, entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[entry.PersonaID]
	if n := len(entries); n > 0 && entries[n-1].Generation >= entry.Generation {
		return fmt.Errorf("generation %d: %w", entry.Generation, domain.ErrAlreadyExists)
	}
	if entry.IsPending() {
		for _, e := range entries {
			if e.IsPending() {
				return fmt.Errorf("second pending entry: %w", domain.ErrAlreadyExists)
			}
		}
	}
	m.history[entry.PersonaID] = append(entries, entry)
	return nil
}

func (m memHistory) Transition(_ context.Context, personaID uuid.UUID, generation int64, from, to domain.ChangeStatus, reviewedBy *uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[personaID]
	for i, e := range entries {
		if e.Generation != generation {
			continue
		}
		if e.Status != from || (m.staleTo != "" && to == m.staleTo) {
			return false, nil
		}
		if to == domain.ChangeStatusPending {
			for _, other := range entries {
				if other.IsPending() {
					return false, fmt.Errorf("second pending entry: %w", domain.ErrAlreadyExists)
				}
			}
		}
		entries[i].Status = to
		if reviewedBy != nil {
			entries[i].ReviewedBy = reviewedBy
		}
		return true, nil
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// seed stores a persona whose generations 1..committedGens are committed with
// the given fields.
func (m *memStore) seed(fields domain.Fields, committedGens int64) domain.Persona {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	fields = fields.Clone()
	fields[domain.FieldID] = domain.PersonaIDValue(id)
	p := domain.Persona{ID: id, Fields: fields}
	m.personas[id] = p
	for gen := int64(1); gen <= committedGens; gen++ {
		m.history[id] = append(m.history[id], domain.HistoryEntry{
			PersonaID:   id,
			Generation:  gen,
			Status:      domain.ChangeStatusCommitted,
			Fields:      fields,
			SubmittedBy: id,
			Note:        "Seeded.",
		})
	}
	return p
}

func (m *memStore) record(id uuid.UUID) domain.Persona {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.personas[id]
}

func (m *memStore) entries(id uuid.UUID) []domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history[id])
}

func (m *memStore) statuses(id uuid.UUID) []domain.ChangeStatus {
	var out []domain.ChangeStatus
	for _, e := range m.entries(id) {
		out = append(out, e.Status)
	}
	return out
}

// assertInvariants checks the stored history of persona id: generations run
// 1..n without gaps, at most one entry is pending and the record equals the
// latest committed snapshot.
func (m *memStore) assertInvariants(t *testing.T, id uuid.UUID) {
	t.Helper()

	entries := m.entries(id)
	record := m.record(id)

	var committed *domain.HistoryEntry
	pending := 0
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Generation, "generation at position %d", i)
		if e.IsPending() {
			pending++
		}
		if e.Status == domain.ChangeStatusCommitted {
			committed = &entries[i]
		}
	}
	assert.LessOrEqual(t, pending, 1, "pending entries")

	if !assert.NotNil(t, committed, "no committed generation") {
		return
	}
	assert.Empty(t, record.Fields.ChangedKeys(committed.Fields),
		"record differs from generation %d", committed.Generation)
	assert.Empty(t, committed.Fields.ChangedKeys(record.Fields),
		"generation %d differs from record", committed.Generation)
}
