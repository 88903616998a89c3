package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/api/dto"
	"github.com/hollis/taskpilot/internal/api/middleware"
	"github.com/hollis/taskpilot/internal/api/validation"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/database/models"
	"github.com/hollis/taskpilot/internal/joinrequests"
)

type JoinRequestHandler struct {
	joinRequests *joinrequests.Service
}

func NewJoinRequestHandler(joinRequestService *joinrequests.Service) *JoinRequestHandler {
	return &JoinRequestHandler{joinRequests: joinRequestService}
}

// CreateJoinRequestRequest carries the optional message to the approvers
type CreateJoinRequestRequest struct {
	Message string `json:"message,omitempty"`
}

func (r CreateJoinRequestRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if len(r.Message) > 500 {
		errors["message"] = "Message must be at most 500 characters"
	}
	return errors
}

// JoinRequestResponse represents a join request in API responses
type JoinRequestResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func joinRequestToResponse(req *models.JoinRequest) JoinRequestResponse {
	resp := JoinRequestResponse{
		ID:        req.ID.String(),
		ProjectID: req.ProjectID.String(),
		UserID:    req.UserID.String(),
		Message:   req.Message,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.Format(time.RFC3339),
	}
	if req.User != nil {
		resp.Email = req.User.Email
		resp.Name = req.User.Name
	}
	return resp
}

// Discover handles GET /api/v1/projects/code/{code}. Works across tenants;
// the response never identifies the owning tenant.
func (h *JoinRequestHandler) Discover(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	code := chi.URLParam(r, "code")

	if !validation.IsValidJoinCode(code) {
		writeError(w, authz.ErrNotFound)
		return
	}

	discovery, err := h.joinRequests.Discover(r.Context(), p, code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, discovery)
}

// Create handles POST /api/v1/projects/code/{code}/requests
func (h *JoinRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	code := chi.URLParam(r, "code")

	if !validation.IsValidJoinCode(code) {
		writeError(w, authz.ErrNotFound)
		return
	}

	var req CreateJoinRequestRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	joinReq, err := h.joinRequests.Create(r.Context(), p, code, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, joinRequestToResponse(joinReq))
}

// List handles GET /api/v1/projects/{id}/requests
func (h *JoinRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, authz.ErrNotFound)
		return
	}

	reqs, err := h.joinRequests.ListPending(r.Context(), p, projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	response := make([]JoinRequestResponse, len(reqs))
	for i, jr := range reqs {
		response[i] = joinRequestToResponse(&jr)
	}

	writeJSON(w, http.StatusOK, response)
}

// Accept handles POST /api/v1/projects/{id}/requests/{requestID}/accept
func (h *JoinRequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, authz.ErrNotFound)
		return
	}

	member, err := h.joinRequests.Accept(r.Context(), p, requestID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, memberToResponse(member))
}

// Decline handles POST /api/v1/projects/{id}/requests/{requestID}/decline
func (h *JoinRequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, authz.ErrNotFound)
		return
	}

	if err := h.joinRequests.Decline(r.Context(), p, requestID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Join request declined"})
}
