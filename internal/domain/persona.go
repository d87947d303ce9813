package domain

import (
	"time"

	"github.com/google/uuid"
)

// Persona is the canonical, live record of a person.
type Persona struct {
	ID        uuid.UUID
	Fields    Fields
	UpdatedAt time.Time
}

// HistoryEntry is one generation of a persona's changelog. Fields always holds
// the complete snapshot at that generation, never a delta.
type HistoryEntry struct {
	PersonaID   uuid.UUID
	Generation  int64
	Status      ChangeStatus
	Fields      Fields
	SubmittedBy uuid.UUID
	ReviewedBy  *uuid.UUID
	Note        string
	Automated   bool
	CreatedAt   time.Time
}

// IsPending reports whether the entry awaits review.
func (e HistoryEntry) IsPending() bool {
	return e.Status == ChangeStatusPending
}

// PendingChange is a review-queue item: the pending entry plus what it would
// change relative to the canonical record.
type PendingChange struct {
	Entry   HistoryEntry
	Changed []string
}

// PersonaIDValue returns the identity field value for id.
func PersonaIDValue(id uuid.UUID) Value {
	return String(id.String())
}
