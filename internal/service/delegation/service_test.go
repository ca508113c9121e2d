package delegation

import (
	"context"
	"sync"
	"testing"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/notification"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
func (f *fakeNotifier) MarkAllAsRead(ctx context.Context, userID string) error      { return nil }
func (f *fakeNotifier) Delete(ctx context.Context, userID string, id string) error { return nil }
func (f *fakeNotifier) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch := make(chan notification.SSEEvent)
	return ch, func() {}
}
func (f *fakeNotifier) Stop() {}

func userContext(t *testing.T, userID string) context.Context {
	t.Helper()

	ja := jwtauth.New("HS256", []byte("test-secret"), nil)
	token, _, err := ja.Encode(map[string]interface{}{"user_id": userID})
	require.NoError(t, err)

	return jwtauth.NewContext(context.Background(), token, nil)
}

func TestCreateDelegation(t *testing.T) {
	repo := &fakeDelegationRepo{}
	notifier := &fakeNotifier{}
	svc := NewDelegationService(repo, notifier)

	resp, err := svc.CreateDelegation(userContext(t, "mgr-1"), delegation.CreateDelegationRequest{
		DelegateID: "delegate-1",
		Scope:      delegation.ScopeAll,
		StartDate:  "2026-08-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "mgr-1", resp.DelegatorID)
	assert.Equal(t, "delegate-1", resp.DelegateID)
	assert.True(t, resp.Active)

	require.Len(t, notifier.types, 1)
	assert.Equal(t, notification.TypeDelegationGranted, notifier.types[0])
}

func TestCreateDelegation_SelfDelegation(t *testing.T) {
	repo := &fakeDelegationRepo{}
	svc := NewDelegationService(repo, &fakeNotifier{})

	_, err := svc.CreateDelegation(userContext(t, "mgr-1"), delegation.CreateDelegationRequest{
		DelegateID: "mgr-1",
		Scope:      delegation.ScopeAll,
		StartDate:  "2026-08-01",
	})
	assert.ErrorIs(t, err, delegation.ErrSelfDelegation)
}

func TestCreateDelegation_EndBeforeStart(t *testing.T) {
	repo := &fakeDelegationRepo{}
	svc := NewDelegationService(repo, &fakeNotifier{})

	endDate := "2026-07-01"
	_, err := svc.CreateDelegation(userContext(t, "mgr-1"), delegation.CreateDelegationRequest{
		DelegateID: "delegate-1",
		Scope:      delegation.ScopeAll,
		StartDate:  "2026-08-01",
		EndDate:    &endDate,
	})
	assert.Error(t, err)
}

func TestRevokeDelegation_DelegatorOnly(t *testing.T) {
	repo := &fakeDelegationRepo{}
	notifier := &fakeNotifier{}
	svc := NewDelegationService(repo, notifier)

	created, err := svc.CreateDelegation(userContext(t, "mgr-1"), delegation.CreateDelegationRequest{
		DelegateID: "delegate-1",
		Scope:      delegation.ScopeAll,
		StartDate:  "2026-08-01",
	})
	require.NoError(t, err)

	_, err = svc.RevokeDelegation(userContext(t, "delegate-1"), created.ID)
	assert.ErrorIs(t, err, delegation.ErrNotDelegator)

	resp, err := svc.RevokeDelegation(userContext(t, "mgr-1"), created.ID)
	require.NoError(t, err)
	assert.False(t, resp.Active)
	assert.NotNil(t, resp.RevokedAt)

	// Revoking again conflicts.
	_, err = svc.RevokeDelegation(userContext(t, "mgr-1"), created.ID)
	assert.ErrorIs(t, err, delegation.ErrAlreadyRevoked)
}

func TestListMyDelegations_IncludesRevoked(t *testing.T) {
	repo := &fakeDelegationRepo{}
	svc := NewDelegationService(repo, &fakeNotifier{})
	ctx := userContext(t, "mgr-1")

	created, err := svc.CreateDelegation(ctx, delegation.CreateDelegationRequest{
		DelegateID: "delegate-1",
		Scope:      delegation.ScopeAll,
		StartDate:  "2026-08-01",
	})
	require.NoError(t, err)

	_, err = svc.RevokeDelegation(ctx, created.ID)
	require.NoError(t, err)

	list, err := svc.ListMyDelegations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
}
