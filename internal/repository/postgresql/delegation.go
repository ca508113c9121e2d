package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type delegationRepository struct {
	db *database.DB
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *database.DB) delegation.Repository {
	return &delegationRepository{db: db}
}

const delegationColumns = `
	id, delegator_id, delegate_id, scope, start_date, end_date,
	active, revoked_at, created_at, updated_at
`

func scanDelegation(row pgx.Row, d *delegation.Delegation) error {
	return row.Scan(
		&d.ID, &d.DelegatorID, &d.DelegateID, &d.Scope, &d.StartDate, &d.EndDate,
		&d.Active, &d.RevokedAt, &d.CreatedAt, &d.UpdatedAt,
	)
}

// Create implements delegation.Repository.
func (r *delegationRepository) Create(ctx context.Context, d delegation.Delegation) (delegation.Delegation, error) {
	q := GetQuerier(ctx, r.db)

	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	query := `
		INSERT INTO delegations (id, delegator_id, delegate_id, scope, start_date, end_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		d.ID, d.DelegatorID, d.DelegateID, d.Scope, d.StartDate, d.EndDate, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return delegation.Delegation{}, fmt.Errorf("failed to create delegation: %w", err)
	}

	return d, nil
}

// GetByID implements delegation.Repository.
func (r *delegationRepository) GetByID(ctx context.Context, id string) (delegation.Delegation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE id = $1
	`

	var d delegation.Delegation
	err := scanDelegation(q.QueryRow(ctx, query, id), &d)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return delegation.Delegation{}, delegation.ErrDelegationNotFound
		}
		return delegation.Delegation{}, fmt.Errorf("failed to get delegation: %w", err)
	}

	return d, nil
}

// ListActiveByDelegator implements delegation.Repository.
func (r *delegationRepository) ListActiveByDelegator(ctx context.Context, delegatorID string, at time.Time) ([]delegation.Delegation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegator_id = $1
		  AND active = true
		  AND start_date <= $2
		  AND (end_date IS NULL OR end_date >= $2)
		ORDER BY created_at DESC
	`

	rows, err := q.Query(ctx, query, delegatorID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to query active delegations: %w", err)
	}
	defer rows.Close()

	var delegations []delegation.Delegation
	for rows.Next() {
		var d delegation.Delegation
		if err := scanDelegation(rows, &d); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, d)
	}

	return delegations, nil
}

// ListByDelegator implements delegation.Repository.
func (r *delegationRepository) ListByDelegator(ctx context.Context, delegatorID string) ([]delegation.Delegation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegator_id = $1
		ORDER BY created_at DESC
	`

	rows, err := q.Query(ctx, query, delegatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delegations: %w", err)
	}
	defer rows.Close()

	var delegations []delegation.Delegation
	for rows.Next() {
		var d delegation.Delegation
		if err := scanDelegation(rows, &d); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, d)
	}

	return delegations, nil
}

// Revoke implements delegation.Repository.
func (r *delegationRepository) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE delegations
		SET active = false, revoked_at = $2, updated_at = NOW()
		WHERE id = $1 AND active = true
	`

	result, err := q.Exec(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return delegation.ErrAlreadyRevoked
	}

	return nil
}

// DeactivateExpired implements delegation.Repository.
func (r *delegationRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE delegations
		SET active = false, updated_at = NOW()
		WHERE active = true AND end_date IS NOT NULL AND end_date < $1
	`

	result, err := q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired delegations: %w", err)
	}

	return result.RowsAffected(), nil
}
