package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type DelegationHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Revoke(w http.ResponseWriter, r *http.Request)
	ListMy(w http.ResponseWriter, r *http.Request)
}

type delegationHandlerImpl struct {
	delegationService delegation.Service
}

func NewDelegationHandler(delegationService delegation.Service) DelegationHandler {
	return &delegationHandlerImpl{
		delegationService: delegationService,
	}
}

// Create implements DelegationHandler.
func (h *delegationHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req delegation.CreateDelegationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.delegationService.CreateDelegation(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Delegation created", result)
}

// Revoke implements DelegationHandler.
func (h *delegationHandlerImpl) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Delegation ID is required", nil)
		return
	}

	result, err := h.delegationService.RevokeDelegation(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Delegation revoked", result)
}

// ListMy implements DelegationHandler.
func (h *delegationHandlerImpl) ListMy(w http.ResponseWriter, r *http.Request) {
	result, err := h.delegationService.ListMyDelegations(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
