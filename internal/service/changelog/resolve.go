package changelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// Resolve accepts or rejects a pending change. It returns 1 when a pending
// entry was resolved and 0 when none matched, so repeated calls are harmless.
// Authorization of the reviewer is the caller's responsibility.
func (s *Service) Resolve(ctx context.Context, input ResolveInput) (int64, error) {
	callerID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return 0, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return 0, err
	}

	ctx, span := s.telemetry.startSpan(ctx, "changelog.Resolve", input.PersonaID)

	var code int64
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.personas.LockForUpdate(txCtx, input.PersonaID); err != nil {
			return fmt.Errorf("lock persona: %w", err)
		}
		var resolveErr error
		code, resolveErr = s.resolve(txCtx, callerID, input.PersonaID, input.Generation, input.Accept, input.MarkReviewed)
		return resolveErr
	})
	if err != nil {
		endSpan(span, err)
		return 0, fmt.Errorf("changelog.Resolve: %w", err)
	}
	endSpan(span, nil,
		attribute.Bool("changelog.accept", input.Accept),
		attribute.Int64("changelog.code", code),
	)

	s.log.InfoContext(ctx, "change resolved",
		slog.String("user_id", callerID.String()),
		slog.String("persona_id", input.PersonaID.String()),
		slog.Int64("generation", input.Generation),
		slog.Bool("accept", input.Accept),
		slog.Int64("code", code),
	)

	return code, nil
}

// resolve runs inside the caller's transaction, which must hold the persona lock.
func (s *Service) resolve(ctx context.Context, callerID, personaID uuid.UUID, generation int64, accept, markReviewed bool) (int64, error) {
	if !accept {
		return s.nack(ctx, callerID, personaID, generation)
	}
	return s.commit(ctx, callerID, personaID, generation, markReviewed)
}

func (s *Service) nack(ctx context.Context, callerID, personaID uuid.UUID, generation int64) (int64, error) {
	ok, err := s.history.Transition(ctx, personaID, generation,
		domain.ChangeStatusPending, domain.ChangeStatusNacked, &callerID)
	if err != nil {
		return 0, fmt.Errorf("nack generation %d: %w", generation, err)
	}
	if !ok {
		s.telemetry.recordResolve(ctx, "noop")
		return 0, nil
	}

	if err := s.logAudit(ctx, callerID, personaID, domain.AuditActionNacked, map[string]any{
		"generation": generation,
	}); err != nil {
		return 0, err
	}
	s.telemetry.recordResolve(ctx, "nacked")
	return 1, nil
}

// commit makes a pending generation the truth and copies its differing
// fields onto the canonical record.
func (s *Service) commit(ctx context.Context, callerID, personaID uuid.UUID, generation int64, markReviewed bool) (int64, error) {
	var reviewer *uuid.UUID
	if markReviewed {
		reviewer = &callerID
	}

	ok, err := s.history.Transition(ctx, personaID, generation,
		domain.ChangeStatusPending, domain.ChangeStatusCommitted, reviewer)
	if err != nil {
		return 0, fmt.Errorf("commit generation %d: %w", generation, err)
	}
	if !ok {
		s.telemetry.recordResolve(ctx, "noop")
		return 0, nil
	}

	entry, err := s.history.Get(ctx, personaID, generation)
	if err != nil {
		return 0, fmt.Errorf("get generation %d: %w", generation, err)
	}
	record, err := s.personas.Get(ctx, personaID)
	if err != nil {
		return 0, fmt.Errorf("get persona: %w", err)
	}

	changed := record.Fields.ChangedKeys(entry.Fields.Without(domain.FieldID))
	if len(changed) == 0 {
		s.log.InfoContext(ctx, "change reverted",
			slog.String("persona_id", personaID.String()),
			slog.Int64("generation", generation),
		)
		if err := s.logAudit(ctx, callerID, personaID, domain.AuditActionReverted, map[string]any{
			"generation": generation,
		}); err != nil {
			return 0, err
		}
		s.telemetry.recordResolve(ctx, "reverted")
		return 1, nil
	}

	updated := entry.Fields.Pick(changed...)
	ok, err = s.personas.ApplyFields(ctx, personaID, updated)
	if err != nil {
		return 0, fmt.Errorf("apply generation %d: %w", generation, err)
	}
	if !ok {
		return 0, domain.NewContractViolation(domain.ErrEntityVanished, personaID,
			fmt.Sprintf("generation %d", generation))
	}

	if err := s.logAudit(ctx, callerID, personaID, domain.AuditActionCommitted, map[string]any{
		"generation": generation,
		"reviewed":   markReviewed,
		"fields":     updated.Plain(),
	}); err != nil {
		return 0, err
	}
	s.telemetry.recordResolve(ctx, "committed")
	return 1, nil
}
