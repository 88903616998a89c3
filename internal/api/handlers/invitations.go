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
	"github.com/hollis/taskpilot/internal/invitations"
)

type InvitationHandler struct {
	invitations *invitations.Service
}

func NewInvitationHandler(invitationService *invitations.Service) *InvitationHandler {
	return &InvitationHandler{invitations: invitationService}
}

// CreateInvitationRequest represents the request to invite someone
type CreateInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r CreateInvitationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email is not valid"
	}
	switch models.ProjectRole(r.Role) {
	case models.RoleAdmin, models.RoleMember, models.RoleViewer:
	default:
		errors["role"] = "Role must be admin, member or viewer"
	}
	return errors
}

// InvitationResponse represents an invitation in API responses
type InvitationResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

func invitationToResponse(inv *models.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:        inv.ID.String(),
		ProjectID: inv.ProjectID.String(),
		Email:     inv.Email,
		Role:      string(inv.Role),
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
}

// InvitationPreview is the token-resolution view: enough for an invitee to
// decide, nothing tenant-internal.
type InvitationPreview struct {
	ProjectName string `json:"project_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Create handles POST /api/v1/projects/{id}/invitations
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, authz.ErrNotFound)
		return
	}

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	inv, err := h.invitations.Create(r.Context(), p, invitations.CreateInput{
		ProjectID: projectID,
		Email:     req.Email,
		Role:      models.ProjectRole(req.Role),
	})
	if err != nil {
		if err == invitations.ErrInvalidRole {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Role must be admin, member or viewer"})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, invitationToResponse(inv))
}

// List handles GET /api/v1/projects/{id}/invitations
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, authz.ErrNotFound)
		return
	}

	invs, err := h.invitations.ListForProject(r.Context(), p, projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	response := make([]InvitationResponse, len(invs))
	for i, inv := range invs {
		response[i] = invitationToResponse(&inv)
	}

	writeJSON(w, http.StatusOK, response)
}

// Resolve handles GET /api/v1/invitations/{token}. No authentication: the
// token itself is the capability, and an invitee may not have an account yet.
func (h *InvitationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	inv, err := h.invitations.GetByToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	preview := InvitationPreview{
		Email:     inv.Email,
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
	}
	if inv.Project != nil {
		preview.ProjectName = inv.Project.Name
	}

	writeJSON(w, http.StatusOK, preview)
}

// Accept handles POST /api/v1/invitations/{token}/accept
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	token := chi.URLParam(r, "token")

	member, err := h.invitations.Accept(r.Context(), p, token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, memberToResponse(member))
}

// Decline handles POST /api/v1/invitations/{token}/decline
func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	token := chi.URLParam(r, "token")

	if err := h.invitations.Decline(r.Context(), p, token); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invitation declined"})
}
