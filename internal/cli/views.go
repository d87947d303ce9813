package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
)

// personaView is the output form of a canonical record.
type personaView struct {
	ID     string         `json:"id"     yaml:"id"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

func newPersonaView(p domain.Persona) personaView {
	return personaView{ID: p.ID.String(), Fields: p.Fields.Without(domain.FieldID).Plain()}
}

func (v personaView) writeText(w io.Writer) {
	fmt.Fprintf(w, "persona %s\n", v.ID)
	writeFields(w, v.Fields)
}

// entryView is the output form of one history generation.
type entryView struct {
	PersonaID   string         `json:"persona_id"            yaml:"persona_id"`
	Generation  int64          `json:"generation"            yaml:"generation"`
	Status      string         `json:"status"                yaml:"status"`
	SubmittedBy string         `json:"submitted_by"          yaml:"submitted_by"`
	ReviewedBy  string         `json:"reviewed_by,omitempty" yaml:"reviewed_by,omitempty"`
	Note        string         `json:"note"                  yaml:"note"`
	Automated   bool           `json:"automated"             yaml:"automated"`
	CreatedAt   time.Time      `json:"created_at"            yaml:"created_at"`
	Changed     []string       `json:"changed,omitempty"     yaml:"changed,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"      yaml:"fields,omitempty"`
}

func newEntryView(e domain.HistoryEntry, withFields bool) entryView {
	v := entryView{
		PersonaID:   e.PersonaID.String(),
		Generation:  e.Generation,
		Status:      e.Status.String(),
		SubmittedBy: e.SubmittedBy.String(),
		Note:        e.Note,
		Automated:   e.Automated,
		CreatedAt:   e.CreatedAt,
	}
	if e.ReviewedBy != nil {
		v.ReviewedBy = e.ReviewedBy.String()
	}
	if withFields {
		v.Fields = e.Fields.Without(domain.FieldID).Plain()
	}
	return v
}

func (v entryView) writeText(w io.Writer) {
	fmt.Fprintf(w, "generation %d  %-10s  %s  by %s", v.Generation, v.Status, v.CreatedAt.Format(time.RFC3339), v.SubmittedBy)
	if v.ReviewedBy != "" {
		fmt.Fprintf(w, "  reviewed by %s", v.ReviewedBy)
	}
	if v.Automated {
		fmt.Fprint(w, "  (automated)")
	}
	fmt.Fprintf(w, "\n  note: %s\n", v.Note)
	if len(v.Changed) > 0 {
		fmt.Fprintf(w, "  changes: %v\n", v.Changed)
	}
	writeFields(w, v.Fields)
}

// historyView lists generations in ascending order.
type historyView struct {
	PersonaID string      `json:"persona_id" yaml:"persona_id"`
	Entries   []entryView `json:"entries"    yaml:"entries"`
}

func newHistoryView(personaID uuid.UUID, entries map[int64]domain.HistoryEntry, withFields bool) historyView {
	v := historyView{PersonaID: personaID.String(), Entries: make([]entryView, 0, len(entries))}
	for _, gen := range slices.Sorted(maps.Keys(entries)) {
		v.Entries = append(v.Entries, newEntryView(entries[gen], withFields))
	}
	return v
}

func (v historyView) writeText(w io.Writer) {
	fmt.Fprintf(w, "history of persona %s (%d generations)\n", v.PersonaID, len(v.Entries))
	for _, e := range v.Entries {
		e.writeText(w)
	}
}

// pendingView is one page of the review queue.
type pendingView struct {
	Total int         `json:"total" yaml:"total"`
	Items []entryView `json:"items" yaml:"items"`
}

func newPendingView(page changelog.PendingPage) pendingView {
	v := pendingView{Total: page.Total, Items: make([]entryView, 0, len(page.Items))}
	for _, item := range page.Items {
		e := newEntryView(item.Entry, false)
		e.Changed = item.Changed
		v.Items = append(v.Items, e)
	}
	return v
}

func (v pendingView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%d pending changes\n", v.Total)
	for _, e := range v.Items {
		fmt.Fprintf(w, "persona %s\n", e.PersonaID)
		e.writeText(w)
	}
}

// submitView is the outcome of a submitted change.
type submitView struct {
	Code       int64  `json:"code"       yaml:"code"`
	Outcome    string `json:"outcome"    yaml:"outcome"`
	Generation int64  `json:"generation" yaml:"generation"`
	Message    string `json:"message"    yaml:"message"`
}

func newSubmitView(res changelog.SubmitResult) submitView {
	return submitView{
		Code:       res.Code,
		Outcome:    res.Outcome.String(),
		Generation: res.Generation,
		Message:    res.Message,
	}
}

func (v submitView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s (code %d): %s, generation %d\n", v.Outcome, v.Code, v.Message, v.Generation)
}

// resolveView is the outcome of a review decision.
type resolveView struct {
	Code     int64 `json:"code"     yaml:"code"`
	Resolved bool  `json:"resolved" yaml:"resolved"`
}

func (v resolveView) writeText(w io.Writer) {
	if v.Resolved {
		fmt.Fprintln(w, "change resolved")
		return
	}
	fmt.Fprintln(w, "no pending change with that generation")
}

// generationView reports a persona's current generation.
type generationView struct {
	PersonaID     string `json:"persona_id"     yaml:"persona_id"`
	Generation    int64  `json:"generation"     yaml:"generation"`
	CommittedOnly bool   `json:"committed_only" yaml:"committed_only"`
}

func (v generationView) writeText(w io.Writer) {
	fmt.Fprintln(w, v.Generation)
}

// auditView is one audit record.
type auditView struct {
	ID        string         `json:"id"                yaml:"id"`
	UserID    string         `json:"user_id"           yaml:"user_id"`
	Action    string         `json:"action"            yaml:"action"`
	Changes   map[string]any `json:"changes,omitempty" yaml:"changes,omitempty"`
	CreatedAt time.Time      `json:"created_at"        yaml:"created_at"`
}

type auditListView []auditView

func newAuditListView(records []domain.AuditRecord) auditListView {
	out := make(auditListView, 0, len(records))
	for _, r := range records {
		out = append(out, auditView{
			ID:        r.ID.String(),
			UserID:    r.UserID.String(),
			Action:    r.Action.String(),
			Changes:   r.Changes,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func (v auditListView) writeText(w io.Writer) {
	for _, r := range v {
		fmt.Fprintf(w, "%s  %-18s  by %s\n", r.CreatedAt.Format(time.RFC3339), r.Action, r.UserID)
		for _, k := range slices.Sorted(maps.Keys(r.Changes)) {
			fmt.Fprintf(w, "  %s: %v\n", k, r.Changes[k])
		}
	}
}

// migrateView lists applied migration versions.
type migrateView struct {
	Applied []int64 `json:"applied" yaml:"applied"`
}

func (v migrateView) writeText(w io.Writer) {
	if len(v.Applied) == 0 {
		fmt.Fprintln(w, "no pending migrations")
		return
	}
	fmt.Fprintf(w, "applied migrations %v\n", v.Applied)
}

func writeFields(w io.Writer, fields map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		v := fields[k]
		if v == nil {
			v = "null"
		}
		fmt.Fprintf(w, "  %-16s %v\n", k, v)
	}
}
