package changelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// Submit proposes a change to a persona. Depending on the review policy the
// change is committed at once or stays pending for a reviewer. All reads and
// writes happen in one transaction that holds the persona's row lock.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	callerID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return SubmitResult{}, domain.ErrUnauthorized
	}

	if err := input.Validate(s.cfg.Schema); err != nil {
		return SubmitResult{}, err
	}

	start := time.Now()
	ctx, span := s.telemetry.startSpan(ctx, "changelog.Submit", input.PersonaID)

	var result SubmitResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var submitErr error
		result, submitErr = s.submit(txCtx, callerID, input)
		return submitErr
	})
	if err != nil {
		s.telemetry.recordSubmit(ctx, "error", time.Since(start))
		endSpan(span, err)
		if errors.Is(err, domain.ErrContractViolation) {
			s.log.ErrorContext(ctx, "changelog contract violation",
				slog.String("persona_id", input.PersonaID.String()),
				slog.String("error", err.Error()),
			)
		}
		return SubmitResult{}, fmt.Errorf("changelog.Submit: %w", err)
	}

	s.telemetry.recordSubmit(ctx, result.Outcome.String(), time.Since(start))
	endSpan(span, nil,
		attribute.String("changelog.outcome", result.Outcome.String()),
		attribute.Int64("changelog.generation", result.Generation),
	)

	s.log.InfoContext(ctx, "change submitted",
		slog.String("user_id", callerID.String()),
		slog.String("persona_id", input.PersonaID.String()),
		slog.String("outcome", result.Outcome.String()),
		slog.Int64("code", result.Code),
		slog.Int64("generation", result.Generation),
	)

	return result, nil
}

// submit runs inside the transaction. It may be re-run from the start when
// the store retries a conflicting transaction.
func (s *Service) submit(ctx context.Context, callerID uuid.UUID, input SubmitInput) (SubmitResult, error) {
	personaID := input.PersonaID

	record, err := s.personas.LockForUpdate(ctx, personaID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("lock persona: %w", err)
	}

	current, err := s.history.Latest(ctx, personaID, domain.ChangeStatusPending, domain.ChangeStatusCommitted)
	if errors.Is(err, domain.ErrNotFound) {
		return SubmitResult{}, domain.NewContractViolation(domain.ErrNoCommittedState, personaID, "")
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("get current generation: %w", err)
	}

	if input.ExpectedGeneration != nil && *input.ExpectedGeneration != current.Generation {
		return SubmitResult{
			Code:       0,
			Outcome:    OutcomeConflict,
			Generation: current.Generation,
			Message:    msgConflict,
		}, nil
	}

	committed, err := s.latestCommitted(ctx, current)
	if err != nil {
		return SubmitResult{}, err
	}
	if diff := committed.Fields.Diff(record.Fields); len(diff) > 0 {
		return SubmitResult{}, domain.NewContractViolation(domain.ErrRecordHistoryDivergence, personaID,
			"fields "+strings.Join(diff.Keys(), ", "))
	}

	// An urgent change moves a pending change out of the way and replays it
	// on top afterwards.
	baseline := current.Fields
	var stash domain.Fields
	var displaced *domain.HistoryEntry
	if current.IsPending() && !input.MayWait {
		stash = record.Fields.Diff(current.Fields)
		if err := s.transition(ctx, current, domain.ChangeStatusDisplaced, nil); err != nil {
			return SubmitResult{}, err
		}
		baseline = current.Fields.Overlay(record.Fields)
		displaced = &current
	}

	changed := baseline.ChangedKeys(input.Fields)
	if len(changed) == 0 {
		return s.submitNoOp(ctx, callerID, record, current, displaced)
	}

	isReviewer, err := s.reviewers.IsRelativeReviewer(ctx, personaID, record.Fields)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("check reviewer: %w", err)
	}

	merged := baseline.Overlay(input.Fields)
	allChanged := committed.Fields.ChangedKeys(merged)
	requiresReview := input.ForceReview || s.cfg.Policy.RequiresReview(allChanged, record.Fields, isReviewer)

	if current.IsPending() && displaced == nil {
		if err := s.transition(ctx, current, domain.ChangeStatusSuperseded, nil); err != nil {
			return SubmitResult{}, err
		}
	}

	maxGen, err := s.history.MaxGeneration(ctx, personaID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("get max generation: %w", err)
	}

	entry := domain.HistoryEntry{
		PersonaID:   personaID,
		Generation:  maxGen + 1,
		Status:      domain.ChangeStatusPending,
		Fields:      merged,
		SubmittedBy: callerID,
		Note:        input.Note,
		Automated:   input.Automated,
		CreatedAt:   s.now(),
	}
	committedRows, err := s.insertAndDecide(ctx, callerID, entry, allChanged, requiresReview)
	if err != nil {
		return SubmitResult{}, err
	}

	if !input.MayWait && committedRows == 0 {
		return SubmitResult{}, domain.NewContractViolation(domain.ErrNonWaitingChangeNotCommitted, personaID,
			fmt.Sprintf("generation %d", entry.Generation))
	}

	result := SubmitResult{Generation: entry.Generation}

	// A displaced change is always replayed, even when it matched the record
	// already. Reinstating it would leave a pending snapshot that misses the
	// urgent change.
	if displaced != nil {
		replayed, replayedGen, err := s.replayStash(ctx, *displaced, stash, changed, merged, record.Fields.Overlay(merged))
		if err != nil {
			return SubmitResult{}, err
		}
		committedRows += replayed
		result.Generation = replayedGen
	}

	if committedRows > 0 {
		result.Code = committedRows
		result.Outcome = OutcomeCommitted
		result.Message = msgCommitted
	} else {
		result.Code = -1
		result.Outcome = OutcomeDeferred
		result.Message = msgDeferred
	}
	return result, nil
}

// submitNoOp handles a proposal that changes nothing relative to the baseline.
func (s *Service) submitNoOp(ctx context.Context, callerID uuid.UUID, record domain.Persona, current domain.HistoryEntry, displaced *domain.HistoryEntry) (SubmitResult, error) {
	if displaced != nil {
		ok, err := s.history.Transition(ctx, displaced.PersonaID, displaced.Generation,
			domain.ChangeStatusDisplaced, domain.ChangeStatusPending, nil)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("reinstate generation %d: %w", displaced.Generation, err)
		}
		if !ok {
			return SubmitResult{}, fmt.Errorf("reinstate generation %d: %w", displaced.Generation, domain.ErrConflict)
		}
		return SubmitResult{
			Code:       1,
			Outcome:    OutcomeNoOpReinstated,
			Generation: displaced.Generation,
			Message:    msgReinstated,
		}, nil
	}

	if current.IsPending() {
		isReviewer, err := s.reviewers.IsRelativeReviewer(ctx, current.PersonaID, record.Fields)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("check reviewer: %w", err)
		}
		if isReviewer {
			code, err := s.resolve(ctx, callerID, current.PersonaID, current.Generation, true, true)
			if err != nil {
				return SubmitResult{}, err
			}
			return SubmitResult{
				Code:       code,
				Outcome:    OutcomeFastTracked,
				Generation: current.Generation,
				Message:    msgFastTrack,
			}, nil
		}
	}

	return SubmitResult{
		Code:       1,
		Outcome:    OutcomeNoOpAccepted,
		Generation: current.Generation,
		Message:    msgNothing,
	}, nil
}

// insertAndDecide writes entry as pending and commits it unless it must wait
// for review. It returns the number of committed rows.
func (s *Service) insertAndDecide(ctx context.Context, callerID uuid.UUID, entry domain.HistoryEntry, changed []string, requiresReview bool) (int64, error) {
	if err := s.history.Insert(ctx, entry); err != nil {
		return 0, fmt.Errorf("insert generation %d: %w", entry.Generation, err)
	}

	if s.cfg.AutoCommit || !requiresReview {
		n, err := s.resolve(ctx, callerID, entry.PersonaID, entry.Generation, true, false)
		if err != nil {
			return 0, err
		}
		return n, nil
	}

	if err := s.logAudit(ctx, entry.SubmittedBy, entry.PersonaID, domain.AuditActionPending, map[string]any{
		"generation": entry.Generation,
		"fields":     changed,
	}); err != nil {
		return 0, err
	}
	return 0, nil
}

// replayStash re-applies the displaced change as a new generation on top of
// the urgent change that was just committed. state is the persona's state
// after that commit. It returns the committed rows and the new generation.
func (s *Service) replayStash(ctx context.Context, displaced domain.HistoryEntry, stash domain.Fields, urgentChanged []string, merged, state domain.Fields) (int64, int64, error) {
	var overlap []string
	for _, f := range urgentChanged {
		if _, ok := stash[f]; ok {
			overlap = append(overlap, f)
		}
	}
	if len(overlap) > 0 {
		return 0, 0, domain.NewContractViolation(domain.ErrConflictingPendingChange, displaced.PersonaID,
			"fields "+strings.Join(overlap, ", "))
	}

	maxGen, err := s.history.MaxGeneration(ctx, displaced.PersonaID)
	if err != nil {
		return 0, 0, fmt.Errorf("get max generation: %w", err)
	}

	replay := domain.HistoryEntry{
		PersonaID:   displaced.PersonaID,
		Generation:  maxGen + 1,
		Status:      domain.ChangeStatusPending,
		Fields:      merged.Overlay(stash),
		SubmittedBy: displaced.SubmittedBy,
		Note:        s.cfg.ReplayNote,
		Automated:   displaced.Automated,
		CreatedAt:   s.now(),
	}

	// The replay does not inherit the urgent caller's reviewer rights.
	changed := merged.ChangedKeys(replay.Fields)
	requiresReview := s.cfg.Policy.RequiresReview(changed, state, false)

	n, err := s.insertAndDecide(ctx, displaced.SubmittedBy, replay, changed, requiresReview)
	if err != nil {
		return 0, 0, err
	}

	s.log.InfoContext(ctx, "displaced change replayed",
		slog.String("persona_id", displaced.PersonaID.String()),
		slog.Int64("displaced_generation", displaced.Generation),
		slog.Int64("generation", replay.Generation),
		slog.Bool("committed", n > 0),
	)
	return n, replay.Generation, nil
}

// latestCommitted returns current when it is committed, otherwise the latest
// committed entry.
func (s *Service) latestCommitted(ctx context.Context, current domain.HistoryEntry) (domain.HistoryEntry, error) {
	if current.Status == domain.ChangeStatusCommitted {
		return current, nil
	}
	committed, err := s.history.Latest(ctx, current.PersonaID, domain.ChangeStatusCommitted)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.HistoryEntry{}, domain.NewContractViolation(domain.ErrNoCommittedState, current.PersonaID, "")
	}
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("get committed generation: %w", err)
	}
	return committed, nil
}

// transition moves a pending entry to status to. The entry must still be pending.
func (s *Service) transition(ctx context.Context, entry domain.HistoryEntry, to domain.ChangeStatus, reviewedBy *uuid.UUID) error {
	ok, err := s.history.Transition(ctx, entry.PersonaID, entry.Generation, domain.ChangeStatusPending, to, reviewedBy)
	if err != nil {
		return fmt.Errorf("mark generation %d %s: %w", entry.Generation, to, err)
	}
	if !ok {
		return fmt.Errorf("mark generation %d %s: %w", entry.Generation, to, domain.ErrConflict)
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, userID, personaID uuid.UUID, action domain.AuditAction, changes map[string]any) error {
	err := s.audit.Log(ctx, domain.AuditRecord{
		ID:         uuid.New(),
		UserID:     userID,
		EntityType: domain.EntityTypePersona,
		EntityID:   &personaID,
		Action:     action,
		Changes:    changes,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	return nil
}
