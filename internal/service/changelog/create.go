package changelog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// Create registers a new persona and seeds its history with a committed
// generation 1, reviewed by the caller.
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.Persona, error) {
	callerID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return domain.Persona{}, domain.ErrUnauthorized
	}

	if err := input.Validate(s.cfg.Schema); err != nil {
		return domain.Persona{}, err
	}

	note := strings.TrimSpace(input.Note)
	if note == "" {
		note = s.cfg.CreationNote
	}

	id := uuid.New()
	now := s.now()
	fields := input.Fields.Clone()
	fields[domain.FieldID] = domain.PersonaIDValue(id)
	fields = s.cfg.Schema.Complete(fields)

	persona := domain.Persona{ID: id, Fields: fields, UpdatedAt: now}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.personas.Create(txCtx, persona); err != nil {
			return fmt.Errorf("create persona: %w", err)
		}

		if err := s.history.Insert(txCtx, domain.HistoryEntry{
			PersonaID:   id,
			Generation:  1,
			Status:      domain.ChangeStatusCommitted,
			Fields:      fields,
			SubmittedBy: callerID,
			ReviewedBy:  &callerID,
			Note:        note,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("insert generation 1: %w", err)
		}

		return s.logAudit(txCtx, callerID, id, domain.AuditActionCreate, map[string]any{
			"fields": fields.Without(domain.FieldID).Plain(),
		})
	})
	if err != nil {
		return domain.Persona{}, fmt.Errorf("changelog.Create: %w", err)
	}

	s.log.InfoContext(ctx, "persona created",
		slog.String("user_id", callerID.String()),
		slog.String("persona_id", id.String()),
	)

	return persona, nil
}
