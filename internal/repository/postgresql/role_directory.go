package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type roleDirectory struct {
	db *database.DB
}

// NewRoleDirectory creates a role directory backed by the role_members table
func NewRoleDirectory(db *database.DB) approval.RoleDirectory {
	return &roleDirectory{db: db}
}

// ResolveRole implements approval.RoleDirectory.
// Members are ordered by id so the same role always routes to the same
// approver until membership changes.
func (r *roleDirectory) ResolveRole(ctx context.Context, roleID string) (string, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT member_id
		FROM role_members
		WHERE role_id = $1
		ORDER BY member_id ASC
		LIMIT 1
	`

	var memberID string
	err := q.QueryRow(ctx, query, roleID).Scan(&memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", approval.ErrNoRoleMember
		}
		return "", fmt.Errorf("failed to resolve role %s: %w", roleID, err)
	}

	return memberID, nil
}
