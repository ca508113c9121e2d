package delegation

import (
	"context"
	"time"
)

// Repository stores delegations. Rows are append-then-deactivate;
// nothing is ever deleted.
type Repository interface {
	Create(ctx context.Context, delegation Delegation) (Delegation, error)

	GetByID(ctx context.Context, id string) (Delegation, error)

	// ListActiveByDelegator returns active delegations whose window
	// contains `at`, newest first. The resolver takes the first
	// matching row (last-writer precedence).
	ListActiveByDelegator(ctx context.Context, delegatorID string, at time.Time) ([]Delegation, error)

	// ListByDelegator returns every delegation a user created,
	// including revoked and expired ones (audit view).
	ListByDelegator(ctx context.Context, delegatorID string) ([]Delegation, error)

	// Revoke deactivates a delegation and records the revocation time.
	Revoke(ctx context.Context, id string, revokedAt time.Time) error

	// DeactivateExpired flips active=false on delegations whose end
	// date has passed. Returns the number of rows touched.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
