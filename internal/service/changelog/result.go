package changelog

import "github.com/heartmarshall/persona-registry/internal/domain"

// Outcome classifies the result of Submit.
type Outcome string

const (
	// OutcomeConflict: the expected generation was stale. Nothing was written.
	OutcomeConflict Outcome = "CONFLICT"
	// OutcomeCommitted: the change (and a replayed stash, if any) is the truth.
	OutcomeCommitted Outcome = "COMMITTED"
	// OutcomeDeferred: the change was written and awaits review.
	OutcomeDeferred Outcome = "DEFERRED"
	// OutcomeNoOpAccepted: the change matched the current state.
	OutcomeNoOpAccepted Outcome = "NOOP_ACCEPTED"
	// OutcomeNoOpReinstated: the change matched the current state and the
	// displaced pending change went back to review.
	OutcomeNoOpReinstated Outcome = "NOOP_REINSTATED"
	// OutcomeFastTracked: the change matched the pending change, which the
	// reviewing caller committed.
	OutcomeFastTracked Outcome = "FAST_TRACKED"
)

func (o Outcome) String() string { return string(o) }

// SubmitResult is the outcome of Submit.
type SubmitResult struct {
	// Code is positive when rows were committed (1, or 2 with a stash replay),
	// negative when the change awaits review, 0 on a generation conflict.
	Code    int64
	Outcome Outcome
	// Generation is the persona's current generation after the call.
	Generation int64
	Message    string
}

// PendingPage is one page of the review queue.
type PendingPage struct {
	Items []domain.PendingChange
	Total int
}

const (
	msgCommitted  = "change committed"
	msgDeferred   = "change awaits review"
	msgNothing    = "nothing changed"
	msgConflict   = "generation mismatch, reload and retry"
	msgFastTrack  = "pending change committed"
	msgReinstated = "nothing changed, pending change reinstated"
)
