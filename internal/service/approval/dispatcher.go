package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/notification"
)

// OpenException implements approval.Dispatcher.
// Idempotent: a subject with a pending request gets that request back,
// whether the duplicate is observed up front or lost as a race on the
// partial unique index.
func (s *ApprovalServiceImpl) OpenException(ctx context.Context, req approval.OpenExceptionRequest) (approval.Request, error) {
	if err := req.Validate(); err != nil {
		return approval.Request{}, err
	}

	s.locks.Lock(req.SubjectID)
	defer s.locks.Unlock(req.SubjectID)

	if pending, err := s.requests.GetPendingBySubject(ctx, req.SubjectID); err != nil {
		return approval.Request{}, err
	} else if pending != nil {
		return *pending, nil
	}

	workflow, err := s.workflows.GetActiveByType(ctx, req.ExceptionType)
	if err != nil {
		return approval.Request{}, err
	}
	if len(workflow.Steps) == 0 {
		return approval.Request{}, fmt.Errorf("workflow %s has no steps: %w", workflow.ID, approval.ErrUnknownWorkflow)
	}

	now := time.Now().UTC()

	var request approval.Request
	var firstStep approval.Step

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		request, err = s.requests.Create(txCtx, approval.Request{
			WorkflowID:  workflow.ID,
			SubjectType: req.SubjectType,
			SubjectID:   req.SubjectID,
			RequesterID: req.RequesterID,
			Status:      approval.RequestStatusPending,
			CurrentStep: 1,
			TotalSteps:  len(workflow.Steps),
		})
		if err != nil {
			return err
		}
		request.WorkflowType = &workflow.WorkflowType

		firstStep, err = s.materializeStep(txCtx, request, workflow, 1, now)
		return err
	})
	if err != nil {
		if errors.Is(err, approval.ErrDuplicatePendingRequest) {
			// Lost the index race; the winner's request serves both.
			pending, fetchErr := s.requests.GetPendingBySubject(ctx, req.SubjectID)
			if fetchErr != nil {
				return approval.Request{}, fetchErr
			}
			if pending != nil {
				return *pending, nil
			}
		}
		return approval.Request{}, err
	}

	s.notifyPendingStep(ctx, request, firstStep)
	_ = s.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: req.RequesterID,
		Type:        notification.TypeExceptionOpened,
		Title:       "Attendance exception opened",
		Message:     fmt.Sprintf("A %s exception was opened for review.", req.ExceptionType),
		Data:        exceptionData(request, req),
	})

	return request, nil
}

func exceptionData(request approval.Request, req approval.OpenExceptionRequest) map[string]interface{} {
	data := map[string]interface{}{
		"request_id":     request.ID,
		"subject_id":     req.SubjectID,
		"exception_type": string(req.ExceptionType),
	}
	for k, v := range req.Context {
		data[k] = v
	}
	return data
}
