package delegation

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
)

type resolver struct {
	repo delegation.Repository
}

// NewResolver creates the routing-time delegation resolver used by the
// workflow engine.
func NewResolver(repo delegation.Repository) delegation.Resolver {
	return &resolver{repo: repo}
}

// Resolve implements delegation.Resolver.
// One hop only: the returned delegate's own delegations are not
// followed, so delegation chains cannot form cycles.
func (r *resolver) Resolve(ctx context.Context, nominalApproverID string, scope string, at time.Time) (string, error) {
	delegations, err := r.repo.ListActiveByDelegator(ctx, nominalApproverID, at)
	if err != nil {
		return "", fmt.Errorf("failed to resolve delegations for %s: %w", nominalApproverID, err)
	}

	// Rows come newest first; the first covering one wins.
	for _, d := range delegations {
		if d.CoversAt(scope, at) {
			return d.DelegateID, nil
		}
	}

	return nominalApproverID, nil
}

// IsActiveDelegate implements delegation.Resolver.
func (r *resolver) IsActiveDelegate(ctx context.Context, delegatorID string, candidateID string, scope string, at time.Time) (bool, error) {
	delegations, err := r.repo.ListActiveByDelegator(ctx, delegatorID, at)
	if err != nil {
		return false, fmt.Errorf("failed to check delegations for %s: %w", delegatorID, err)
	}

	for _, d := range delegations {
		if d.DelegateID == candidateID && d.CoversAt(scope, at) {
			return true, nil
		}
	}

	return false, nil
}
