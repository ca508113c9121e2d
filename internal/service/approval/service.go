package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/keymutex"
	"github.com/cmlabs-hris/attendance-engine-go/internal/repository/postgresql"
	"github.com/jackc/pgx/v5"
)

type ApprovalServiceImpl struct {
	db        *database.DB
	workflows approval.WorkflowRepository
	requests  approval.RequestRepository
	steps     approval.StepRepository
	roles     approval.RoleDirectory
	resolver  delegation.Resolver
	notifier  notification.Service
	locks     *keymutex.KeyMutex

	// runInTx wraps a unit of work in a database transaction carried
	// through the context for the repositories.
	runInTx func(ctx context.Context, fn func(ctx context.Context) error) error

	mu               sync.RWMutex
	subjectResolvers map[string]approval.SubjectResolver
}

func NewApprovalService(
	db *database.DB,
	workflows approval.WorkflowRepository,
	requests approval.RequestRepository,
	steps approval.StepRepository,
	roles approval.RoleDirectory,
	resolver delegation.Resolver,
	notifier notification.Service,
) *ApprovalServiceImpl {
	s := &ApprovalServiceImpl{
		db:               db,
		workflows:        workflows,
		requests:         requests,
		steps:            steps,
		roles:            roles,
		resolver:         resolver,
		notifier:         notifier,
		locks:            keymutex.New(),
		subjectResolvers: make(map[string]approval.SubjectResolver),
	}
	s.runInTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return postgresql.WithTransaction(ctx, db, func(tx pgx.Tx) error {
			return fn(context.WithValue(ctx, "tx", tx))
		})
	}
	return s
}

// RegisterSubjectResolver wires the terminal-resolution callback for a
// subject type. Called once at startup, before the engine serves traffic.
func (s *ApprovalServiceImpl) RegisterSubjectResolver(subjectType string, resolver approval.SubjectResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjectResolvers[subjectType] = resolver
}

func (s *ApprovalServiceImpl) subjectResolver(subjectType string) (approval.SubjectResolver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resolver, ok := s.subjectResolvers[subjectType]
	return resolver, ok
}

// Decide implements approval.Service.
func (s *ApprovalServiceImpl) Decide(ctx context.Context, req approval.DecideRequest) (approval.RequestResponse, error) {
	if err := req.Validate(); err != nil {
		return approval.RequestResponse{}, err
	}

	// Serialize decisions per request; the conditional UPDATE on the
	// step row remains the final arbiter across processes.
	s.locks.Lock(req.RequestID)
	defer s.locks.Unlock(req.RequestID)

	request, err := s.requests.GetByID(ctx, req.RequestID)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	if request.Status.IsTerminal() {
		return approval.RequestResponse{}, approval.ErrRequestAlreadyResolved
	}

	// A decision aimed at a step the chain has moved past is stale.
	if req.StepNumber != request.CurrentStep {
		return approval.RequestResponse{}, approval.ErrStaleDecision
	}

	workflow, err := s.workflows.GetByID(ctx, request.WorkflowID)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	now := time.Now().UTC()

	step, err := s.materializeStep(ctx, request, workflow, request.CurrentStep, now)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	if err := s.authorizeDecision(ctx, step, workflow, req.ActingUserID, now); err != nil {
		return approval.RequestResponse{}, err
	}

	stepStatus := approval.StepStatusApproved
	if req.Outcome == approval.OutcomeReject {
		stepStatus = approval.StepStatusRejected
	}

	var terminal *approval.RequestStatus
	var nextStep *approval.Step

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		committed, err := s.steps.Decide(txCtx, step.ID, stepStatus, req.ActingUserID, now, req.Comments)
		if err != nil {
			return err
		}
		if !committed {
			// Another decision won the race on this step.
			return approval.ErrStaleDecision
		}

		switch {
		case req.Outcome == approval.OutcomeReject:
			// Single veto short-circuits the remaining steps.
			done, err := s.requests.Complete(txCtx, request.ID, approval.RequestStatusRejected, now)
			if err != nil {
				return err
			}
			if !done {
				return approval.ErrStaleDecision
			}
			status := approval.RequestStatusRejected
			terminal = &status

		case request.CurrentStep >= request.TotalSteps:
			done, err := s.requests.Complete(txCtx, request.ID, approval.RequestStatusApproved, now)
			if err != nil {
				return err
			}
			if !done {
				return approval.ErrStaleDecision
			}
			status := approval.RequestStatusApproved
			terminal = &status

		default:
			advanced, err := s.requests.AdvanceStep(txCtx, request.ID, request.CurrentStep)
			if err != nil {
				return err
			}
			if !advanced {
				return approval.ErrStaleDecision
			}

			created, err := s.materializeStep(txCtx, request, workflow, request.CurrentStep+1, now)
			if err != nil {
				return err
			}
			nextStep = &created
		}

		return nil
	})
	if err != nil {
		return approval.RequestResponse{}, err
	}

	if terminal != nil {
		s.resolveSubject(ctx, request, *terminal)
		s.notifyTerminal(ctx, request, *terminal, req.ActingUserID, req.Outcome)
	} else if nextStep != nil {
		s.notifyPendingStep(ctx, request, *nextStep)
		if req.Outcome == approval.OutcomeEscalate {
			s.notifyEscalated(ctx, request, *nextStep)
		}
	}

	return s.GetRequest(ctx, request.ID)
}

// authorizeDecision checks that the acting user may decide the step:
// the assigned approver, a covering delegate resolved at decision time,
// or the system actor.
func (s *ApprovalServiceImpl) authorizeDecision(ctx context.Context, step approval.Step, workflow approval.Workflow, actingUserID string, now time.Time) error {
	if actingUserID == identity.SystemUserID {
		return nil
	}
	if actingUserID == step.AssignedApproverID {
		return nil
	}

	covered, err := s.resolver.IsActiveDelegate(ctx, step.AssignedApproverID, actingUserID, string(workflow.WorkflowType), now)
	if err != nil {
		return err
	}
	if !covered {
		return approval.ErrUnauthorizedApprover
	}

	return nil
}

// materializeStep returns the step row for stepNumber, creating it if
// this is the first time it became current. Routing resolves the
// template's nominal approver through the role directory and the
// delegation resolver.
func (s *ApprovalServiceImpl) materializeStep(ctx context.Context, request approval.Request, workflow approval.Workflow, stepNumber int, now time.Time) (approval.Step, error) {
	step, err := s.steps.GetByRequestAndNumber(ctx, request.ID, stepNumber)
	if err == nil {
		return step, nil
	}
	if !errors.Is(err, approval.ErrStepNotFound) {
		return approval.Step{}, err
	}

	var template *approval.WorkflowStep
	for i := range workflow.Steps {
		if workflow.Steps[i].StepNumber == stepNumber {
			template = &workflow.Steps[i]
			break
		}
	}
	if template == nil {
		return approval.Step{}, fmt.Errorf("workflow %s has no step %d: %w", workflow.ID, stepNumber, approval.ErrStepNotFound)
	}

	nominal := template.Approver.UserID
	if template.Approver.Kind == approval.ApproverKindRole {
		member, err := s.roles.ResolveRole(ctx, template.Approver.RoleID)
		if err != nil {
			return approval.Step{}, err
		}
		nominal = member
	}

	assigned, err := s.resolver.Resolve(ctx, nominal, string(workflow.WorkflowType), now)
	if err != nil {
		return approval.Step{}, err
	}

	return s.steps.Create(ctx, approval.Step{
		RequestID:          request.ID,
		StepNumber:         stepNumber,
		AssignedApproverID: assigned,
		Status:             approval.StepStatusPending,
	})
}

// Cancel implements approval.Service.
func (s *ApprovalServiceImpl) Cancel(ctx context.Context, requestID string, actingUserID string) (approval.RequestResponse, error) {
	s.locks.Lock(requestID)
	defer s.locks.Unlock(requestID)

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	if request.Status.IsTerminal() {
		return approval.RequestResponse{}, approval.ErrRequestAlreadyResolved
	}

	if request.RequesterID != actingUserID {
		return approval.RequestResponse{}, approval.ErrNotRequester
	}

	now := time.Now().UTC()
	done, err := s.requests.Complete(ctx, requestID, approval.RequestStatusCancelled, now)
	if err != nil {
		return approval.RequestResponse{}, err
	}
	if !done {
		return approval.RequestResponse{}, approval.ErrRequestAlreadyResolved
	}

	s.resolveSubject(ctx, request, approval.RequestStatusCancelled)
	s.notifyTerminal(ctx, request, approval.RequestStatusCancelled, actingUserID, "")

	return s.GetRequest(ctx, requestID)
}

// GetRequest implements approval.Service.
func (s *ApprovalServiceImpl) GetRequest(ctx context.Context, id string) (approval.RequestResponse, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	steps, err := s.steps.ListByRequest(ctx, id)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	return toRequestResponse(request, steps), nil
}

// ListRequests implements approval.Service.
func (s *ApprovalServiceImpl) ListRequests(ctx context.Context, filter approval.RequestFilter) (approval.ListRequestsResponse, error) {
	if err := filter.Validate(); err != nil {
		return approval.ListRequestsResponse{}, err
	}

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return approval.ListRequestsResponse{}, err
	}

	responses := make([]approval.RequestResponse, len(requests))
	for i, request := range requests {
		responses[i] = toRequestResponse(request, nil)
	}

	return approval.ListRequestsResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
		Requests:   responses,
	}, nil
}

// ListPendingForApprover implements approval.Service.
func (s *ApprovalServiceImpl) ListPendingForApprover(ctx context.Context, approverID string) ([]approval.PendingStepResponse, error) {
	steps, err := s.steps.ListPendingByApprover(ctx, approverID)
	if err != nil {
		return nil, err
	}

	responses := make([]approval.PendingStepResponse, 0, len(steps))
	for _, step := range steps {
		request, err := s.requests.GetByID(ctx, step.RequestID)
		if err != nil {
			if errors.Is(err, approval.ErrRequestNotFound) {
				continue
			}
			return nil, err
		}

		responses = append(responses, approval.PendingStepResponse{
			RequestID:    request.ID,
			StepID:       step.ID,
			StepNumber:   step.StepNumber,
			TotalSteps:   request.TotalSteps,
			SubjectType:  request.SubjectType,
			SubjectID:    request.SubjectID,
			RequesterID:  request.RequesterID,
			WorkflowType: request.WorkflowType,
			CreatedAt:    step.CreatedAt.Format(time.RFC3339),
		})
	}

	return responses, nil
}

// EscalateStale implements approval.Service.
// Each overdue request gets a system decision on its current step; an
// escalation on the final step approves the request.
func (s *ApprovalServiceImpl) EscalateStale(ctx context.Context) error {
	now := time.Now().UTC()

	stale, err := s.requests.ListPendingOlderThan(ctx, now)
	if err != nil {
		return err
	}

	for _, request := range stale {
		comment := "escalated after timeout"
		_, err := s.Decide(ctx, approval.DecideRequest{
			RequestID:    request.ID,
			StepNumber:   request.CurrentStep,
			ActingUserID: identity.SystemUserID,
			Outcome:      approval.OutcomeEscalate,
			Comments:     &comment,
		})
		if err != nil {
			if errors.Is(err, approval.ErrStaleDecision) || errors.Is(err, approval.ErrRequestAlreadyResolved) {
				// A human decision landed first.
				continue
			}
			log.Printf("[ApprovalService] Failed to escalate request %s: %v", request.ID, err)
		}
	}

	return nil
}

// resolveSubject hands the terminal outcome to the subject owner's
// callback. Failures are logged, never propagated: the request is
// already terminal and the callback is idempotent on retry.
func (s *ApprovalServiceImpl) resolveSubject(ctx context.Context, request approval.Request, status approval.RequestStatus) {
	resolver, ok := s.subjectResolver(request.SubjectType)
	if !ok {
		log.Printf("[ApprovalService] %v: %s", approval.ErrUnknownSubjectType, request.SubjectType)
		return
	}

	if err := resolver.ResolveException(ctx, request.SubjectID, request.ID, status); err != nil {
		log.Printf("[ApprovalService] Subject resolution failed for request %s: %v", request.ID, err)
	}
}

func (s *ApprovalServiceImpl) notifyTerminal(ctx context.Context, request approval.Request, status approval.RequestStatus, actingUserID string, outcome approval.Outcome) {
	notifType := notification.TypeRequestApproved
	title := "Request approved"
	switch status {
	case approval.RequestStatusRejected:
		notifType = notification.TypeRequestRejected
		title = "Request rejected"
	case approval.RequestStatusCancelled:
		notifType = notification.TypeRequestCancelled
		title = "Request cancelled"
	}

	var sender *string
	if actingUserID != "" && actingUserID != identity.SystemUserID {
		sender = &actingUserID
	}

	_ = s.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: request.RequesterID,
		SenderID:    sender,
		Type:        notifType,
		Title:       title,
		Message:     fmt.Sprintf("Your %s request is %s.", request.SubjectType, status),
		Data: map[string]interface{}{
			"request_id": request.ID,
			"subject_id": request.SubjectID,
			"outcome":    string(outcome),
		},
	})
}

func (s *ApprovalServiceImpl) notifyPendingStep(ctx context.Context, request approval.Request, step approval.Step) {
	_ = s.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: step.AssignedApproverID,
		Type:        notification.TypeApprovalPending,
		Title:       "Approval needed",
		Message:     fmt.Sprintf("Step %d of %d awaits your decision.", step.StepNumber, request.TotalSteps),
		Data: map[string]interface{}{
			"request_id":  request.ID,
			"step_number": step.StepNumber,
			"subject_id":  request.SubjectID,
		},
	})
}

func (s *ApprovalServiceImpl) notifyEscalated(ctx context.Context, request approval.Request, nextStep approval.Step) {
	_ = s.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: request.RequesterID,
		Type:        notification.TypeRequestEscalated,
		Title:       "Request escalated",
		Message:     fmt.Sprintf("Your request moved to step %d of %d after a timeout.", nextStep.StepNumber, request.TotalSteps),
		Data: map[string]interface{}{
			"request_id":  request.ID,
			"step_number": nextStep.StepNumber,
		},
	})
}

func toRequestResponse(request approval.Request, steps []approval.Step) approval.RequestResponse {
	resp := approval.RequestResponse{
		ID:           request.ID,
		WorkflowID:   request.WorkflowID,
		WorkflowType: request.WorkflowType,
		SubjectType:  request.SubjectType,
		SubjectID:    request.SubjectID,
		RequesterID:  request.RequesterID,
		Status:       string(request.Status),
		CurrentStep:  request.CurrentStep,
		TotalSteps:   request.TotalSteps,
		CreatedAt:    request.CreatedAt.Format(time.RFC3339),
	}
	if request.CompletedAt != nil {
		completedAt := request.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}

	for _, step := range steps {
		stepResp := approval.StepResponse{
			ID:                 step.ID,
			StepNumber:         step.StepNumber,
			AssignedApproverID: step.AssignedApproverID,
			Status:             string(step.Status),
			DecidedBy:          step.DecidedBy,
			Comments:           step.Comments,
		}
		if step.DecidedAt != nil {
			decidedAt := step.DecidedAt.Format(time.RFC3339)
			stepResp.DecidedAt = &decidedAt
		}
		resp.Steps = append(resp.Steps, stepResp)
	}

	return resp
}
