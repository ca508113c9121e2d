package delegation

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
	"github.com/go-chi/jwtauth/v5"
)

type DelegationServiceImpl struct {
	repo    delegation.Repository
	notifer notification.Service
}

func NewDelegationService(repo delegation.Repository, notifer notification.Service) delegation.Service {
	return &DelegationServiceImpl{
		repo:    repo,
		notifer: notifer,
	}
}

func userIDFromContext(ctx context.Context) (string, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id claim is missing or invalid")
	}

	return userID, nil
}

// CreateDelegation implements delegation.Service.
func (s *DelegationServiceImpl) CreateDelegation(ctx context.Context, req delegation.CreateDelegationRequest) (delegation.DelegationResponse, error) {
	if err := req.Validate(); err != nil {
		return delegation.DelegationResponse{}, err
	}

	userID, err := userIDFromContext(ctx)
	if err != nil {
		return delegation.DelegationResponse{}, err
	}
	req.DelegatorID = userID

	if req.DelegateID == req.DelegatorID {
		return delegation.DelegationResponse{}, delegation.ErrSelfDelegation
	}

	startDate, _ := validator.IsValidDate(req.StartDate)
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, _ := validator.IsValidDate(*req.EndDate)
		// Cover the whole end day.
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		endDate = &parsed
	}

	created, err := s.repo.Create(ctx, delegation.Delegation{
		DelegatorID: req.DelegatorID,
		DelegateID:  req.DelegateID,
		Scope:       req.Scope,
		StartDate:   startDate,
		EndDate:     endDate,
		Active:      true,
	})
	if err != nil {
		return delegation.DelegationResponse{}, fmt.Errorf("failed to create delegation: %w", err)
	}

	_ = s.notifer.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: created.DelegateID,
		SenderID:    &created.DelegatorID,
		Type:        notification.TypeDelegationGranted,
		Title:       "Approval delegation granted",
		Message:     "You will receive approval steps on behalf of a delegator.",
		Data: map[string]interface{}{
			"delegation_id": created.ID,
			"scope":         created.Scope,
		},
	})

	return toResponse(created), nil
}

// RevokeDelegation implements delegation.Service.
func (s *DelegationServiceImpl) RevokeDelegation(ctx context.Context, id string) (delegation.DelegationResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return delegation.DelegationResponse{}, err
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return delegation.DelegationResponse{}, err
	}

	if d.DelegatorID != userID {
		return delegation.DelegationResponse{}, delegation.ErrNotDelegator
	}

	revokedAt := time.Now().UTC()
	if err := s.repo.Revoke(ctx, id, revokedAt); err != nil {
		return delegation.DelegationResponse{}, err
	}

	d.Active = false
	d.RevokedAt = &revokedAt

	_ = s.notifer.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: d.DelegateID,
		SenderID:    &d.DelegatorID,
		Type:        notification.TypeDelegationRevoked,
		Title:       "Approval delegation revoked",
		Message:     "A delegation naming you as delegate has been revoked.",
		Data: map[string]interface{}{
			"delegation_id": d.ID,
		},
	})

	return toResponse(d), nil
}

// ListMyDelegations implements delegation.Service.
func (s *DelegationServiceImpl) ListMyDelegations(ctx context.Context) ([]delegation.DelegationResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	delegations, err := s.repo.ListByDelegator(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]delegation.DelegationResponse, len(delegations))
	for i, d := range delegations {
		responses[i] = toResponse(d)
	}

	return responses, nil
}

func toResponse(d delegation.Delegation) delegation.DelegationResponse {
	resp := delegation.DelegationResponse{
		ID:          d.ID,
		DelegatorID: d.DelegatorID,
		DelegateID:  d.DelegateID,
		Scope:       d.Scope,
		StartDate:   d.StartDate.Format("2006-01-02"),
		Active:      d.Active,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
	if d.EndDate != nil {
		endDate := d.EndDate.Format("2006-01-02")
		resp.EndDate = &endDate
	}
	if d.RevokedAt != nil {
		revokedAt := d.RevokedAt.Format(time.RFC3339)
		resp.RevokedAt = &revokedAt
	}
	return resp
}
