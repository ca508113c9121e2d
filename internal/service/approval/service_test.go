package approval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============= Fakes =============

type fakeWorkflowRepo struct {
	mu        sync.Mutex
	workflows map[string]approval.Workflow
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{workflows: make(map[string]approval.Workflow)}
}

func (f *fakeWorkflowRepo) Create(ctx context.Context, workflow approval.Workflow) (approval.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}
	workflow.CreatedAt = time.Now()
	f.workflows[workflow.ID] = workflow
	return workflow, nil
}

func (f *fakeWorkflowRepo) GetByID(ctx context.Context, id string) (approval.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wf, ok := f.workflows[id]
	if !ok {
		return approval.Workflow{}, approval.ErrWorkflowNotFound
	}
	return wf, nil
}

func (f *fakeWorkflowRepo) GetActiveByType(ctx context.Context, workflowType approval.ExceptionType) (approval.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, wf := range f.workflows {
		if wf.WorkflowType == workflowType && wf.Active {
			return wf, nil
		}
	}
	return approval.Workflow{}, approval.ErrUnknownWorkflow
}

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*approval.Request
	types    map[string]approval.ExceptionType
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		requests: make(map[string]*approval.Request),
		types:    make(map[string]approval.ExceptionType),
	}
}

func (f *fakeRequestRepo) Create(ctx context.Context, request approval.Request) (approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.requests {
		if existing.SubjectID == request.SubjectID && existing.Status == approval.RequestStatusPending {
			return approval.Request{}, approval.ErrDuplicatePendingRequest
		}
	}
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	request.CreatedAt = time.Now()
	stored := request
	f.requests[request.ID] = &stored
	return request, nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id string) (approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[id]
	if !ok {
		return approval.Request{}, approval.ErrRequestNotFound
	}
	return *request, nil
}

func (f *fakeRequestRepo) GetPendingBySubject(ctx context.Context, subjectID string) (*approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, request := range f.requests {
		if request.SubjectID == subjectID && request.Status == approval.RequestStatusPending {
			copied := *request
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRequestRepo) AdvanceStep(ctx context.Context, requestID string, fromStep int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[requestID]
	if !ok || request.Status != approval.RequestStatusPending || request.CurrentStep != fromStep {
		return false, nil
	}
	request.CurrentStep++
	return true, nil
}

func (f *fakeRequestRepo) Complete(ctx context.Context, requestID string, status approval.RequestStatus, completedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[requestID]
	if !ok || request.Status != approval.RequestStatusPending {
		return false, nil
	}
	request.Status = status
	request.CompletedAt = &completedAt
	return true, nil
}

func (f *fakeRequestRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Request
	for _, request := range f.requests {
		if request.Status == approval.RequestStatusPending && request.CreatedAt.Before(cutoff) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) List(ctx context.Context, filter approval.RequestFilter) ([]approval.Request, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Request
	for _, request := range f.requests {
		out = append(out, *request)
	}
	return out, int64(len(out)), nil
}

type fakeStepRepo struct {
	mu    sync.Mutex
	steps map[string]*approval.Step // keyed by requestID/stepNumber
}

func newFakeStepRepo() *fakeStepRepo {
	return &fakeStepRepo{steps: make(map[string]*approval.Step)}
}

func stepKey(requestID string, stepNumber int) string {
	return fmt.Sprintf("%s/%d", requestID, stepNumber)
}

func (f *fakeStepRepo) Create(ctx context.Context, step approval.Step) (approval.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := stepKey(step.RequestID, step.StepNumber)
	if existing, ok := f.steps[key]; ok {
		return *existing, nil
	}
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	step.CreatedAt = time.Now()
	stored := step
	f.steps[key] = &stored
	return step, nil
}

func (f *fakeStepRepo) GetByRequestAndNumber(ctx context.Context, requestID string, stepNumber int) (approval.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, ok := f.steps[stepKey(requestID, stepNumber)]
	if !ok {
		return approval.Step{}, approval.ErrStepNotFound
	}
	return *step, nil
}

func (f *fakeStepRepo) Decide(ctx context.Context, stepID string, status approval.StepStatus, decidedBy string, decidedAt time.Time, comments *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, step := range f.steps {
		if step.ID == stepID {
			if step.Status != approval.StepStatusPending {
				return false, nil
			}
			step.Status = status
			step.DecidedBy = &decidedBy
			step.DecidedAt = &decidedAt
			step.Comments = comments
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStepRepo) ListPendingByApprover(ctx context.Context, approverID string) ([]approval.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Step
	for _, step := range f.steps {
		if step.AssignedApproverID == approverID && step.Status == approval.StepStatusPending {
			out = append(out, *step)
		}
	}
	return out, nil
}

func (f *fakeStepRepo) ListByRequest(ctx context.Context, requestID string) ([]approval.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []approval.Step
	for _, step := range f.steps {
		if step.RequestID == requestID {
			out = append(out, *step)
		}
	}
	return out, nil
}

type fakeRoleDirectory struct {
	members map[string]string
}

func (f *fakeRoleDirectory) ResolveRole(ctx context.Context, roleID string) (string, error) {
	member, ok := f.members[roleID]
	if !ok {
		return "", approval.ErrNoRoleMember
	}
	return member, nil
}

// fakeDelegationResolver maps delegator -> delegate for every scope.
type fakeDelegationResolver struct {
	delegates map[string]string
}

func (f *fakeDelegationResolver) Resolve(ctx context.Context, nominalApproverID string, scope string, at time.Time) (string, error) {
	if delegate, ok := f.delegates[nominalApproverID]; ok {
		return delegate, nil
	}
	return nominalApproverID, nil
}

func (f *fakeDelegationResolver) IsActiveDelegate(ctx context.Context, delegatorID string, candidateID string, scope string, at time.Time) (bool, error) {
	return f.delegates[delegatorID] == candidateID, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	types []notification.NotificationType
}

func (f *fakeNotifier) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, req.Type)
	return nil
}

func (f *fakeNotifier) QueueBulkNotification(ctx context.Context, reqs []notification.CreateNotificationRequest) error {
	for _, req := range reqs {
		_ = f.QueueNotification(ctx, req)
	}
	return nil
}

func (f *fakeNotifier) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	return &notification.NotificationListResponse{}, nil
}
func (f *fakeNotifier) GetUnreadCount(ctx context.Context, userID string) (int, error) { return 0, nil }
func (f *fakeNotifier) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	return nil
}
func (f *fakeNotifier) MarkAllAsRead(ctx context.Context, userID string) error          { return nil }
func (f *fakeNotifier) Delete(ctx context.Context, userID string, id string) error     { return nil }
func (f *fakeNotifier) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch := make(chan notification.SSEEvent)
	return ch, func() {}
}
func (f *fakeNotifier) Stop() {}

type fakeSubjectResolver struct {
	mu       sync.Mutex
	outcomes map[string]approval.RequestStatus // subjectID -> outcome
}

func newFakeSubjectResolver() *fakeSubjectResolver {
	return &fakeSubjectResolver{outcomes: make(map[string]approval.RequestStatus)}
}

func (f *fakeSubjectResolver) ResolveException(ctx context.Context, subjectID string, requestID string, outcome approval.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[subjectID] = outcome
	return nil
}

// ============= Harness =============

type harness struct {
	svc       *ApprovalServiceImpl
	workflows *fakeWorkflowRepo
	requests  *fakeRequestRepo
	steps     *fakeStepRepo
	resolver  *fakeDelegationResolver
	subject   *fakeSubjectResolver
	notifier  *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		workflows: newFakeWorkflowRepo(),
		requests:  newFakeRequestRepo(),
		steps:     newFakeStepRepo(),
		resolver:  &fakeDelegationResolver{delegates: make(map[string]string)},
		subject:   newFakeSubjectResolver(),
		notifier:  &fakeNotifier{},
	}

	roles := &fakeRoleDirectory{members: map[string]string{"managers": "mgr-1", "hr_admins": "hr-1"}}

	h.svc = NewApprovalService(nil, h.workflows, h.requests, h.steps, roles, h.resolver, h.notifier)
	h.svc.runInTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
	h.svc.RegisterSubjectResolver("attendance_exception", h.subject)

	return h
}

func (h *harness) seedWorkflow(t *testing.T, stepCount int) approval.Workflow {
	t.Helper()

	steps := make([]approval.WorkflowStep, stepCount)
	for i := range steps {
		roleID := "managers"
		if i == stepCount-1 {
			roleID = "hr_admins"
		}
		steps[i] = approval.WorkflowStep{
			StepNumber: i + 1,
			Approver:   approval.RoleApprover(roleID),
			IsFinal:    i == stepCount-1,
		}
	}

	wf, err := h.workflows.Create(context.Background(), approval.Workflow{
		WorkflowType: approval.ExceptionGeofenceViolation,
		Name:         "Geofence Violation Review",
		Steps:        steps,
		Active:       true,
	})
	require.NoError(t, err)
	return wf
}

func (h *harness) openRequest(t *testing.T, subjectID string) approval.Request {
	t.Helper()

	request, err := h.svc.OpenException(context.Background(), approval.OpenExceptionRequest{
		SubjectType:   "attendance_exception",
		SubjectID:     subjectID,
		RequesterID:   "emp-1",
		ExceptionType: approval.ExceptionGeofenceViolation,
	})
	require.NoError(t, err)
	return request
}

// ============= Dispatcher tests =============

func TestOpenException_MaterializesFirstStep(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)

	request := h.openRequest(t, "session-1")

	assert.Equal(t, approval.RequestStatusPending, request.Status)
	assert.Equal(t, 1, request.CurrentStep)
	assert.Equal(t, 2, request.TotalSteps)

	step, err := h.steps.GetByRequestAndNumber(context.Background(), request.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", step.AssignedApproverID)
	assert.Equal(t, approval.StepStatusPending, step.Status)
}

func TestOpenException_IdempotentPerSubject(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)

	first := h.openRequest(t, "session-1")
	second := h.openRequest(t, "session-1")

	assert.Equal(t, first.ID, second.ID)
}

func TestOpenException_UnknownWorkflowType(t *testing.T) {
	h := newHarness(t)
	// No workflow seeded.

	_, err := h.svc.OpenException(context.Background(), approval.OpenExceptionRequest{
		SubjectType:   "attendance_exception",
		SubjectID:     "session-1",
		RequesterID:   "emp-1",
		ExceptionType: approval.ExceptionGeofenceViolation,
	})

	assert.ErrorIs(t, err, approval.ErrUnknownWorkflow)
}

// ============= Decide tests =============

func TestDecide_ApproveAdvancesToNextStep(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	resp, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "mgr-1",
		Outcome:      approval.OutcomeApprove,
	})
	require.NoError(t, err)

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 2, resp.CurrentStep)

	next, err := h.steps.GetByRequestAndNumber(context.Background(), request.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "hr-1", next.AssignedApproverID)
}

func TestDecide_FinalApproveResolvesSubject(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 1)
	request := h.openRequest(t, "session-1")

	resp, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "hr-1",
		Outcome:      approval.OutcomeApprove,
	})
	require.NoError(t, err)

	assert.Equal(t, "approved", resp.Status)
	assert.NotNil(t, resp.CompletedAt)
	assert.Equal(t, approval.RequestStatusApproved, h.subject.outcomes["session-1"])
}

func TestDecide_RejectShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 3)
	request := h.openRequest(t, "session-1")

	resp, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "mgr-1",
		Outcome:      approval.OutcomeReject,
	})
	require.NoError(t, err)

	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, approval.RequestStatusRejected, h.subject.outcomes["session-1"])

	// Step 2 was never materialized.
	_, err = h.steps.GetByRequestAndNumber(context.Background(), request.ID, 2)
	assert.ErrorIs(t, err, approval.ErrStepNotFound)
}

func TestDecide_UnauthorizedApprover(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	_, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "someone-else",
		Outcome:      approval.OutcomeApprove,
	})

	assert.ErrorIs(t, err, approval.ErrUnauthorizedApprover)
}

func TestDecide_DelegateMayDecide(t *testing.T) {
	h := newHarness(t)
	h.resolver.delegates["mgr-1"] = "delegate-1"
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	// Routing already assigned the step to the delegate.
	step, err := h.steps.GetByRequestAndNumber(context.Background(), request.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "delegate-1", step.AssignedApproverID)

	_, err = h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "delegate-1",
		Outcome:      approval.OutcomeApprove,
	})
	assert.NoError(t, err)
}

func TestDecide_StaleStepNumber(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	_, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "mgr-1",
		Outcome:      approval.OutcomeApprove,
	})
	require.NoError(t, err)

	// A second decision aimed at the already-decided step is stale.
	_, err = h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "mgr-1",
		Outcome:      approval.OutcomeReject,
	})
	assert.ErrorIs(t, err, approval.ErrStaleDecision)
}

func TestDecide_AlreadyResolved(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 1)
	request := h.openRequest(t, "session-1")

	_, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "hr-1",
		Outcome:      approval.OutcomeApprove,
	})
	require.NoError(t, err)

	_, err = h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "hr-1",
		Outcome:      approval.OutcomeApprove,
	})
	assert.ErrorIs(t, err, approval.ErrRequestAlreadyResolved)
}

func TestDecide_ConcurrentDecisionsExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Decide(context.Background(), approval.DecideRequest{
				RequestID:    request.ID,
				StepNumber:   1,
				ActingUserID: "mgr-1",
				Outcome:      approval.OutcomeApprove,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	stale := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case assert.ErrorIs(t, err, approval.ErrStaleDecision):
			stale++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, stale)
}

// ============= Cancel tests =============

func TestCancel_RequesterOnly(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	_, err := h.svc.Cancel(context.Background(), request.ID, "mgr-1")
	assert.ErrorIs(t, err, approval.ErrNotRequester)

	resp, err := h.svc.Cancel(context.Background(), request.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)
	assert.Equal(t, approval.RequestStatusCancelled, h.subject.outcomes["session-1"])
}

func TestCancel_AlreadyResolved(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 1)
	request := h.openRequest(t, "session-1")

	_, err := h.svc.Decide(context.Background(), approval.DecideRequest{
		RequestID:    request.ID,
		StepNumber:   1,
		ActingUserID: "hr-1",
		Outcome:      approval.OutcomeApprove,
	})
	require.NoError(t, err)

	_, err = h.svc.Cancel(context.Background(), request.ID, "emp-1")
	assert.ErrorIs(t, err, approval.ErrRequestAlreadyResolved)
}

// ============= Escalation tests =============

func TestEscalateStale_AdvancesPastIdleStep(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	request := h.openRequest(t, "session-1")

	// Age the request past any escalation window.
	h.requests.mu.Lock()
	h.requests.requests[request.ID].CreatedAt = time.Now().Add(-72 * time.Hour)
	h.requests.mu.Unlock()

	require.NoError(t, h.svc.EscalateStale(context.Background()))

	updated, err := h.requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStep)

	step, err := h.steps.GetByRequestAndNumber(context.Background(), request.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, step.DecidedBy)
	assert.Equal(t, identity.SystemUserID, *step.DecidedBy)
}

func TestEscalateStale_FinalStepApproves(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 1)
	request := h.openRequest(t, "session-1")

	h.requests.mu.Lock()
	h.requests.requests[request.ID].CreatedAt = time.Now().Add(-72 * time.Hour)
	h.requests.mu.Unlock()

	require.NoError(t, h.svc.EscalateStale(context.Background()))

	updated, err := h.requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusApproved, updated.Status)
	assert.Equal(t, approval.RequestStatusApproved, h.subject.outcomes["session-1"])
}

// ============= Listing tests =============

func TestListPendingForApprover(t *testing.T) {
	h := newHarness(t)
	h.seedWorkflow(t, 2)
	h.openRequest(t, "session-1")

	pending, err := h.svc.ListPendingForApprover(context.Background(), "mgr-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].StepNumber)
	assert.Equal(t, "session-1", pending[0].SubjectID)

	none, err := h.svc.ListPendingForApprover(context.Background(), "hr-1")
	require.NoError(t, err)
	assert.Empty(t, none)
}
