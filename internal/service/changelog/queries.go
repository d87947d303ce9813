package changelog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// GetGeneration returns the persona's current generation: the latest pending
// or committed one, or only the latest committed one if committedOnly is set.
// Callers pass it back as SubmitInput.ExpectedGeneration.
func (s *Service) GetGeneration(ctx context.Context, personaID uuid.UUID, committedOnly bool) (int64, error) {
	statuses := []domain.ChangeStatus{domain.ChangeStatusPending, domain.ChangeStatusCommitted}
	if committedOnly {
		statuses = []domain.ChangeStatus{domain.ChangeStatusCommitted}
	}

	entry, err := s.history.Latest(ctx, personaID, statuses...)
	if err != nil {
		return 0, fmt.Errorf("changelog.GetGeneration: %w", err)
	}
	return entry.Generation, nil
}

// GetHistory returns the requested generations of a persona keyed by
// generation. An empty generations slice returns the full history; unknown
// generations are left out.
func (s *Service) GetHistory(ctx context.Context, personaID uuid.UUID, generations []int64) (map[int64]domain.HistoryEntry, error) {
	if _, err := s.personas.Get(ctx, personaID); err != nil {
		return nil, fmt.Errorf("changelog.GetHistory: %w", err)
	}

	entries, err := s.history.History(ctx, personaID, generations)
	if err != nil {
		return nil, fmt.Errorf("changelog.GetHistory: %w", err)
	}

	out := make(map[int64]domain.HistoryEntry, len(entries))
	for _, e := range entries {
		out[e.Generation] = e
	}
	return out, nil
}

// GetPersona returns the canonical record.
func (s *Service) GetPersona(ctx context.Context, personaID uuid.UUID) (domain.Persona, error) {
	p, err := s.personas.Get(ctx, personaID)
	if err != nil {
		return domain.Persona{}, fmt.Errorf("changelog.GetPersona: %w", err)
	}
	return p, nil
}

// ListPending returns the review queue, oldest first. Each item lists the
// fields the pending change would alter relative to the canonical record.
func (s *Service) ListPending(ctx context.Context, input ListPendingInput) (PendingPage, error) {
	if err := input.Validate(); err != nil {
		return PendingPage{}, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultPendingLimit
	}

	entries, total, err := s.history.ListPending(ctx, limit, input.Offset)
	if err != nil {
		return PendingPage{}, fmt.Errorf("changelog.ListPending: %w", err)
	}

	items := make([]domain.PendingChange, 0, len(entries))
	for _, e := range entries {
		record, err := s.personas.Get(ctx, e.PersonaID)
		if err != nil {
			return PendingPage{}, fmt.Errorf("changelog.ListPending: %w", err)
		}
		items = append(items, domain.PendingChange{
			Entry:   e,
			Changed: record.Fields.ChangedKeys(e.Fields),
		})
	}

	return PendingPage{Items: items, Total: total}, nil
}
