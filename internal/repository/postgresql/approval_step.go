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
)

type stepRepository struct {
	db *database.DB
}

// NewStepRepository creates a new approval step repository
func NewStepRepository(db *database.DB) approval.StepRepository {
	return &stepRepository{db: db}
}

// Create implements approval.StepRepository.
func (r *stepRepository) Create(ctx context.Context, step approval.Step) (approval.Step, error) {
	q := GetQuerier(ctx, r.db)

	if step.ID == "" {
		step.ID = uuid.New().String()
	}

	query := `
		INSERT INTO approval_steps (id, request_id, step_number, assigned_approver_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id, step_number) DO NOTHING
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		step.ID,
		step.RequestID,
		step.StepNumber,
		step.AssignedApproverID,
		step.Status,
	).Scan(&step.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the materialization race; return the winner's row.
			return r.GetByRequestAndNumber(ctx, step.RequestID, step.StepNumber)
		}
		return approval.Step{}, fmt.Errorf("failed to create step: %w", err)
	}

	return step, nil
}

// GetByRequestAndNumber implements approval.StepRepository.
func (r *stepRepository) GetByRequestAndNumber(ctx context.Context, requestID string, stepNumber int) (approval.Step, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, request_id, step_number, assigned_approver_id, status,
			   decided_by, decided_at, comments, created_at
		FROM approval_steps
		WHERE request_id = $1 AND step_number = $2
	`

	var step approval.Step
	err := q.QueryRow(ctx, query, requestID, stepNumber).Scan(
		&step.ID, &step.RequestID, &step.StepNumber, &step.AssignedApproverID, &step.Status,
		&step.DecidedBy, &step.DecidedAt, &step.Comments, &step.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Step{}, approval.ErrStepNotFound
		}
		return approval.Step{}, fmt.Errorf("failed to get step: %w", err)
	}

	return step, nil
}

// Decide implements approval.StepRepository.
// The WHERE status = 'pending' guard is the compare-and-set that makes
// concurrent decisions on the same step lose cleanly.
func (r *stepRepository) Decide(ctx context.Context, stepID string, status approval.StepStatus, decidedBy string, decidedAt time.Time, comments *string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE approval_steps
		SET status = $2, decided_by = $3, decided_at = $4, comments = $5
		WHERE id = $1 AND status = 'pending'
	`

	result, err := q.Exec(ctx, query, stepID, status, decidedBy, decidedAt, comments)
	if err != nil {
		return false, fmt.Errorf("failed to decide step: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListPendingByApprover implements approval.StepRepository.
func (r *stepRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]approval.Step, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT s.id, s.request_id, s.step_number, s.assigned_approver_id, s.status,
			   s.decided_by, s.decided_at, s.comments, s.created_at
		FROM approval_steps s
		JOIN approval_requests r ON r.id = s.request_id
		WHERE s.assigned_approver_id = $1
		  AND s.status = 'pending'
		  AND r.status = 'pending'
		  AND r.current_step = s.step_number
		ORDER BY s.created_at ASC
	`

	rows, err := q.Query(ctx, query, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending steps: %w", err)
	}
	defer rows.Close()

	var steps []approval.Step
	for rows.Next() {
		var step approval.Step
		if err := rows.Scan(
			&step.ID, &step.RequestID, &step.StepNumber, &step.AssignedApproverID, &step.Status,
			&step.DecidedBy, &step.DecidedAt, &step.Comments, &step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// ListByRequest implements approval.StepRepository.
func (r *stepRepository) ListByRequest(ctx context.Context, requestID string) ([]approval.Step, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, request_id, step_number, assigned_approver_id, status,
			   decided_by, decided_at, comments, created_at
		FROM approval_steps
		WHERE request_id = $1
		ORDER BY step_number ASC
	`

	rows, err := q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query request steps: %w", err)
	}
	defer rows.Close()

	var steps []approval.Step
	for rows.Next() {
		var step approval.Step
		if err := rows.Scan(
			&step.ID, &step.RequestID, &step.StepNumber, &step.AssignedApproverID, &step.Status,
			&step.DecidedBy, &step.DecidedAt, &step.Comments, &step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, nil
}
