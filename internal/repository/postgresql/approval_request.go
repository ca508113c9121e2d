package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type requestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new approval request repository
func NewRequestRepository(db *database.DB) approval.RequestRepository {
	return &requestRepository{db: db}
}

const requestColumns = `
	r.id, r.workflow_id, r.subject_type, r.subject_id, r.requester_id,
	r.status, r.current_step, r.total_steps,
	r.created_at, r.completed_at,
	w.workflow_type
`

func scanRequest(row pgx.Row, req *approval.Request) error {
	return row.Scan(
		&req.ID, &req.WorkflowID, &req.SubjectType, &req.SubjectID, &req.RequesterID,
		&req.Status, &req.CurrentStep, &req.TotalSteps,
		&req.CreatedAt, &req.CompletedAt,
		&req.WorkflowType,
	)
}

// Create implements approval.RequestRepository.
// The partial unique index on (subject_id) WHERE status = 'pending'
// enforces the one-pending-request rule; a conflict surfaces as
// ErrDuplicatePendingRequest for the dispatcher to recover from.
func (r *requestRepository) Create(ctx context.Context, request approval.Request) (approval.Request, error) {
	q := GetQuerier(ctx, r.db)

	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	query := `
		INSERT INTO approval_requests (
			id, workflow_id, subject_type, subject_id, requester_id,
			status, current_step, total_steps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		request.ID,
		request.WorkflowID,
		request.SubjectType,
		request.SubjectID,
		request.RequesterID,
		request.Status,
		request.CurrentStep,
		request.TotalSteps,
	).Scan(&request.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return approval.Request{}, approval.ErrDuplicatePendingRequest
		}
		return approval.Request{}, fmt.Errorf("failed to create approval request: %w", err)
	}

	return request, nil
}

// GetByID implements approval.RequestRepository.
func (r *requestRepository) GetByID(ctx context.Context, id string) (approval.Request, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests r
		JOIN approval_workflows w ON w.id = r.workflow_id
		WHERE r.id = $1
	`

	var req approval.Request
	err := scanRequest(q.QueryRow(ctx, query, id), &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Request{}, approval.ErrRequestNotFound
		}
		return approval.Request{}, fmt.Errorf("failed to get approval request: %w", err)
	}

	return req, nil
}

// GetPendingBySubject implements approval.RequestRepository.
func (r *requestRepository) GetPendingBySubject(ctx context.Context, subjectID string) (*approval.Request, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests r
		JOIN approval_workflows w ON w.id = r.workflow_id
		WHERE r.subject_id = $1 AND r.status = 'pending'
		LIMIT 1
	`

	var req approval.Request
	err := scanRequest(q.QueryRow(ctx, query, subjectID), &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no pending request
		}
		return nil, fmt.Errorf("failed to get pending request by subject: %w", err)
	}

	return &req, nil
}

// AdvanceStep implements approval.RequestRepository.
func (r *requestRepository) AdvanceStep(ctx context.Context, requestID string, fromStep int) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE approval_requests
		SET current_step = current_step + 1
		WHERE id = $1 AND status = 'pending' AND current_step = $2
	`

	result, err := q.Exec(ctx, query, requestID, fromStep)
	if err != nil {
		return false, fmt.Errorf("failed to advance request step: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Complete implements approval.RequestRepository.
func (r *requestRepository) Complete(ctx context.Context, requestID string, status approval.RequestStatus, completedAt time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE approval_requests
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := q.Exec(ctx, query, requestID, status, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to complete request: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListPendingOlderThan implements approval.RequestRepository.
func (r *requestRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]approval.Request, error) {
	q := GetQuerier(ctx, r.db)

	// Per-workflow escalation windows; the cutoff narrows the scan.
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests r
		JOIN approval_workflows w ON w.id = r.workflow_id
		WHERE r.status = 'pending'
		  AND w.escalate_after_hours IS NOT NULL
		  AND r.created_at < $1
		  AND r.created_at < NOW() - make_interval(hours => w.escalate_after_hours)
		ORDER BY r.created_at ASC
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending requests: %w", err)
	}
	defer rows.Close()

	var requests []approval.Request
	for rows.Next() {
		var req approval.Request
		if err := scanRequest(rows, &req); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, nil
}

// List implements approval.RequestRepository.
func (r *requestRepository) List(ctx context.Context, filter approval.RequestFilter) ([]approval.Request, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.SubjectID != nil && *filter.SubjectID != "" {
		baseWhere += fmt.Sprintf(" AND r.subject_id = $%d", argIdx)
		args = append(args, *filter.SubjectID)
		argIdx++
	}
	if filter.RequesterID != nil && *filter.RequesterID != "" {
		baseWhere += fmt.Sprintf(" AND r.requester_id = $%d", argIdx)
		args = append(args, *filter.RequesterID)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND r.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.WorkflowType != nil && *filter.WorkflowType != "" {
		baseWhere += fmt.Sprintf(" AND w.workflow_type = $%d", argIdx)
		args = append(args, *filter.WorkflowType)
		argIdx++
	}

	countQuery := `
		SELECT COUNT(*)
		FROM approval_requests r
		JOIN approval_workflows w ON w.id = r.workflow_id
		WHERE ` + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT `+requestColumns+`
		FROM approval_requests r
		JOIN approval_workflows w ON w.id = r.workflow_id
		WHERE %s
		ORDER BY r.created_at DESC
		LIMIT $%d OFFSET $%d
	`, baseWhere, argIdx, argIdx+1)

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []approval.Request
	for rows.Next() {
		var req approval.Request
		if err := scanRequest(rows, &req); err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, total, nil
}
