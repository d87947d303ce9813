package domain

// ChangeStatus is the lifecycle state of a persona changelog entry.
type ChangeStatus string

const (
	ChangeStatusPending    ChangeStatus = "PENDING"
	ChangeStatusCommitted  ChangeStatus = "COMMITTED"
	ChangeStatusSuperseded ChangeStatus = "SUPERSEDED"
	ChangeStatusDisplaced  ChangeStatus = "DISPLACED"
	ChangeStatusNacked     ChangeStatus = "NACKED"
)

func (s ChangeStatus) String() string { return string(s) }

func (s ChangeStatus) IsValid() bool {
	switch s {
	case ChangeStatusPending, ChangeStatusCommitted, ChangeStatusSuperseded,
		ChangeStatusDisplaced, ChangeStatusNacked:
		return true
	}
	return false
}

// EntityType identifies the kind of domain entity (used in audit logs).
type EntityType string

const (
	EntityTypePersona EntityType = "PERSONA"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) IsValid() bool {
	return e == EntityTypePersona
}

// AuditAction represents the kind of transition recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate    AuditAction = "PERSONA_CREATED"
	AuditActionCommitted AuditAction = "CHANGE_COMMITTED"
	AuditActionPending   AuditAction = "CHANGE_PENDING"
	AuditActionNacked    AuditAction = "CHANGE_NACKED"
	AuditActionReverted  AuditAction = "CHANGE_REVERTED"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionCommitted, AuditActionPending,
		AuditActionNacked, AuditActionReverted:
		return true
	}
	return false
}
