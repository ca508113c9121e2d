package delegation

import (
	"time"
)

// ScopeAll matches every workflow type.
const ScopeAll = "*"

// Delegation lets delegateID act as approver on delegatorID's behalf
// inside a time window. Rows are deactivated on expiry or revocation,
// never deleted; the table doubles as the audit trail.
type Delegation struct {
	ID          string
	DelegatorID string
	DelegateID  string

	// Scope is a workflow type or ScopeAll.
	Scope string

	StartDate time.Time
	// EndDate nil means open-ended.
	EndDate *time.Time

	Active    bool
	RevokedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CoversAt reports whether the delegation is usable for the given scope
// at the given time. Chained delegation is not followed; callers resolve
// exactly one hop.
func (d Delegation) CoversAt(scope string, at time.Time) bool {
	if !d.Active {
		return false
	}
	if d.Scope != ScopeAll && d.Scope != scope {
		return false
	}
	if at.Before(d.StartDate) {
		return false
	}
	if d.EndDate != nil && at.After(*d.EndDate) {
		return false
	}
	return true
}
