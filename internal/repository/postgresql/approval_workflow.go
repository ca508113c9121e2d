package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type workflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new approval workflow repository
func NewWorkflowRepository(db *database.DB) approval.WorkflowRepository {
	return &workflowRepository{db: db}
}

// Create implements approval.WorkflowRepository.
// Inserts a template version with its steps in one transaction.
func (r *workflowRepository) Create(ctx context.Context, workflow approval.Workflow) (approval.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	err := WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		txCtx := context.WithValue(ctx, "tx", tx)
		q := GetQuerier(txCtx, r.db)

		query := `
			INSERT INTO approval_workflows (id, workflow_type, name, escalate_after_hours, active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`

		err := q.QueryRow(txCtx, query,
			workflow.ID,
			workflow.WorkflowType,
			workflow.Name,
			workflow.EscalateAfterHours,
			workflow.Active,
		).Scan(&workflow.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create workflow: %w", err)
		}

		for _, step := range workflow.Steps {
			stepQuery := `
				INSERT INTO approval_workflow_steps (
					workflow_id, step_number, approver_kind,
					approver_user_id, approver_role_id, is_final
				) VALUES ($1, $2, $3, $4, $5, $6)
			`

			var userID, roleID *string
			if step.Approver.UserID != "" {
				userID = &step.Approver.UserID
			}
			if step.Approver.RoleID != "" {
				roleID = &step.Approver.RoleID
			}

			_, err := q.Exec(txCtx, stepQuery,
				workflow.ID,
				step.StepNumber,
				step.Approver.Kind,
				userID,
				roleID,
				step.IsFinal,
			)
			if err != nil {
				return fmt.Errorf("failed to create workflow step: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return approval.Workflow{}, err
	}

	return workflow, nil
}

// GetByID implements approval.WorkflowRepository.
func (r *workflowRepository) GetByID(ctx context.Context, id string) (approval.Workflow, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, workflow_type, name, escalate_after_hours, active, created_at
		FROM approval_workflows
		WHERE id = $1
	`

	var wf approval.Workflow
	err := q.QueryRow(ctx, query, id).Scan(
		&wf.ID, &wf.WorkflowType, &wf.Name, &wf.EscalateAfterHours, &wf.Active, &wf.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Workflow{}, approval.ErrWorkflowNotFound
		}
		return approval.Workflow{}, fmt.Errorf("failed to get workflow by ID: %w", err)
	}

	steps, err := r.getSteps(ctx, wf.ID)
	if err != nil {
		return approval.Workflow{}, err
	}
	wf.Steps = steps

	return wf, nil
}

// GetActiveByType implements approval.WorkflowRepository.
func (r *workflowRepository) GetActiveByType(ctx context.Context, workflowType approval.ExceptionType) (approval.Workflow, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, workflow_type, name, escalate_after_hours, active, created_at
		FROM approval_workflows
		WHERE workflow_type = $1 AND active = true
		ORDER BY created_at DESC
		LIMIT 1
	`

	var wf approval.Workflow
	err := q.QueryRow(ctx, query, workflowType).Scan(
		&wf.ID, &wf.WorkflowType, &wf.Name, &wf.EscalateAfterHours, &wf.Active, &wf.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Workflow{}, approval.ErrUnknownWorkflow
		}
		return approval.Workflow{}, fmt.Errorf("failed to get active workflow: %w", err)
	}

	steps, err := r.getSteps(ctx, wf.ID)
	if err != nil {
		return approval.Workflow{}, err
	}
	wf.Steps = steps

	return wf, nil
}

func (r *workflowRepository) getSteps(ctx context.Context, workflowID string) ([]approval.WorkflowStep, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT step_number, approver_kind, approver_user_id, approver_role_id, is_final
		FROM approval_workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_number ASC
	`

	rows, err := q.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []approval.WorkflowStep
	for rows.Next() {
		var step approval.WorkflowStep
		var userID, roleID *string

		if err := rows.Scan(&step.StepNumber, &step.Approver.Kind, &userID, &roleID, &step.IsFinal); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}

		if userID != nil {
			step.Approver.UserID = *userID
		}
		if roleID != nil {
			step.Approver.RoleID = *roleID
		}

		steps = append(steps, step)
	}

	return steps, nil
}
