package delegation

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelegationRepo struct {
	mu          sync.Mutex
	seq         int
	delegations []delegation.Delegation
}

func (f *fakeDelegationRepo) Create(ctx context.Context, d delegation.Delegation) (delegation.Delegation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	d.ID = d.DelegatorID + "-" + d.DelegateID
	d.Active = true
	d.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	f.delegations = append(f.delegations, d)
	return d, nil
}

func (f *fakeDelegationRepo) GetByID(ctx context.Context, id string) (delegation.Delegation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.delegations {
		if d.ID == id {
			return d, nil
		}
	}
	return delegation.Delegation{}, delegation.ErrDelegationNotFound
}

func (f *fakeDelegationRepo) ListActiveByDelegator(ctx context.Context, delegatorID string, at time.Time) ([]delegation.Delegation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delegation.Delegation
	for _, d := range f.delegations {
		if d.DelegatorID != delegatorID || !d.Active {
			continue
		}
		if at.Before(d.StartDate) {
			continue
		}
		if d.EndDate != nil && at.After(*d.EndDate) {
			continue
		}
		out = append(out, d)
	}
	// Newest first, matching the SQL ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDelegationRepo) ListByDelegator(ctx context.Context, delegatorID string) ([]delegation.Delegation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []delegation.Delegation
	for _, d := range f.delegations {
		if d.DelegatorID == delegatorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDelegationRepo) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.delegations {
		if f.delegations[i].ID == id {
			if !f.delegations[i].Active {
				return delegation.ErrAlreadyRevoked
			}
			f.delegations[i].Active = false
			f.delegations[i].RevokedAt = &revokedAt
			return nil
		}
	}
	return delegation.ErrDelegationNotFound
}

func (f *fakeDelegationRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var touched int64
	for i := range f.delegations {
		d := &f.delegations[i]
		if d.Active && d.EndDate != nil && d.EndDate.Before(now) {
			d.Active = false
			touched++
		}
	}
	return touched, nil
}

func grant(t *testing.T, repo *fakeDelegationRepo, delegator, delegate, scope string, start time.Time, end *time.Time) delegation.Delegation {
	t.Helper()
	d, err := repo.Create(context.Background(), delegation.Delegation{
		DelegatorID: delegator,
		DelegateID:  delegate,
		Scope:       scope,
		StartDate:   start,
		EndDate:     end,
	})
	require.NoError(t, err)
	return d
}

func TestResolve_NoDelegationReturnsNominal(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)

	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", assigned)
}

func TestResolve_CoveringDelegationWins(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	grant(t, repo, "mgr-1", "delegate-1", delegation.ScopeAll, now.Add(-24*time.Hour), nil)

	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.Equal(t, "delegate-1", assigned)
}

func TestResolve_LastCreatedWins(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	grant(t, repo, "mgr-1", "delegate-1", delegation.ScopeAll, now.Add(-24*time.Hour), nil)
	grant(t, repo, "mgr-1", "delegate-2", delegation.ScopeAll, now.Add(-24*time.Hour), nil)

	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.Equal(t, "delegate-2", assigned)
}

func TestResolve_ScopeMismatchFallsThrough(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	grant(t, repo, "mgr-1", "delegate-1", "overtime_dispute", now.Add(-24*time.Hour), nil)

	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", assigned)
}

func TestResolve_ScopedBeatsNothingButNewerWinsAcrossScopes(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	// Older wildcard, newer scoped grant for a different type.
	grant(t, repo, "mgr-1", "delegate-1", delegation.ScopeAll, now.Add(-24*time.Hour), nil)
	grant(t, repo, "mgr-1", "delegate-2", "overtime_dispute", now.Add(-24*time.Hour), nil)

	// The scoped grant does not cover geofence; the wildcard one does.
	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.Equal(t, "delegate-1", assigned)

	assigned, err = r.Resolve(context.Background(), "mgr-1", "overtime_dispute", now)
	require.NoError(t, err)
	assert.Equal(t, "delegate-2", assigned)
}

func TestResolve_ExpiredWindowIgnored(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	end := now.Add(-time.Hour)
	grant(t, repo, "mgr-1", "delegate-1", delegation.ScopeAll, now.Add(-48*time.Hour), &end)

	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", assigned)
}

func TestResolve_OneHopOnly(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	// mgr-1 -> delegate-1 -> delegate-2: the chain is not followed.
	grant(t, repo, "mgr-1", "delegate-1", delegation.ScopeAll, now.Add(-24*time.Hour), nil)
	grant(t, repo, "delegate-1", "delegate-2", delegation.ScopeAll, now.Add(-24*time.Hour), nil)

	assigned, err := r.Resolve(context.Background(), "mgr-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.Equal(t, "delegate-1", assigned)
}

func TestIsActiveDelegate(t *testing.T) {
	repo := &fakeDelegationRepo{}
	r := NewResolver(repo)
	now := time.Now()

	d := grant(t, repo, "mgr-1", "delegate-1", delegation.ScopeAll, now.Add(-24*time.Hour), nil)

	covered, err := r.IsActiveDelegate(context.Background(), "mgr-1", "delegate-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.True(t, covered)

	covered, err = r.IsActiveDelegate(context.Background(), "mgr-1", "delegate-9", "geofence_violation", now)
	require.NoError(t, err)
	assert.False(t, covered)

	// Revocation takes effect at decision time.
	require.NoError(t, repo.Revoke(context.Background(), d.ID, now))
	covered, err = r.IsActiveDelegate(context.Background(), "mgr-1", "delegate-1", "geofence_violation", now)
	require.NoError(t, err)
	assert.False(t, covered)
}
