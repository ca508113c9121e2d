package delegation

import (
	"context"
	"time"
)

// Service manages delegation windows for the authenticated user.
type Service interface {
	// CreateDelegation registers a delegation window. The delegator is
	// the authenticated user.
	CreateDelegation(ctx context.Context, req CreateDelegationRequest) (DelegationResponse, error)

	// RevokeDelegation deactivates a delegation. Delegator only.
	RevokeDelegation(ctx context.Context, id string) (DelegationResponse, error)

	// ListMyDelegations returns every delegation the authenticated user
	// created, revoked and expired included.
	ListMyDelegations(ctx context.Context) ([]DelegationResponse, error)
}

// Resolver answers routing and authorization questions for the workflow
// engine. Resolution follows exactly one hop; a delegate's own
// delegations are never chained.
type Resolver interface {
	// Resolve maps a nominal approver to the effective approver at the
	// given time. With no covering delegation it returns the nominal
	// approver; with several, the most recently created wins.
	Resolve(ctx context.Context, nominalApproverID string, scope string, at time.Time) (string, error)

	// IsActiveDelegate reports whether candidateID holds a covering
	// delegation from delegatorID at the given time.
	IsActiveDelegate(ctx context.Context, delegatorID string, candidateID string, scope string, at time.Time) (bool, error)
}
