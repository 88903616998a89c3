package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/api/dto"
	"github.com/hollis/taskpilot/internal/api/middleware"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

type MemberHandler struct {
	db    *gorm.DB
	authz *authz.Service
}

func NewMemberHandler(db *gorm.DB, authzService *authz.Service) *MemberHandler {
	return &MemberHandler{db: db, authz: authzService}
}

// UpdateMemberRequest represents the request to change a member's role
type UpdateMemberRequest struct {
	Role string `json:"role"`
}

func (r UpdateMemberRequest) Validate() map[string]string {
	errors := make(map[string]string)
	switch models.ProjectRole(r.Role) {
	case models.RoleAdmin, models.RoleMember, models.RoleViewer:
	case models.RoleOwner:
		errors["role"] = "Ownership cannot be assigned through a role update"
	default:
		errors["role"] = "Invalid role"
	}
	return errors
}

// MemberResponse represents a project member in API responses
type MemberResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func memberToResponse(member *models.ProjectMember) MemberResponse {
	resp := MemberResponse{
		ID:       member.ID.String(),
		UserID:   member.UserID.String(),
		Role:     string(member.Role),
		JoinedAt: member.CreatedAt.Format(time.RFC3339),
	}
	if member.User != nil {
		resp.Email = member.User.Email
		resp.Name = member.User.Name
	}
	return resp
}

// List handles GET /api/v1/projects/{id}/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	project, access, err := h.loadProject(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !access.HasAccess {
		writeError(w, authz.ErrForbidden)
		return
	}

	var members []models.ProjectMember
	if err := h.db.
		Preload("User").
		Where("project_id = ?", project.ID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		writeError(w, err)
		return
	}

	response := make([]MemberResponse, len(members))
	for i, member := range members {
		response[i] = memberToResponse(&member)
	}

	writeJSON(w, http.StatusOK, response)
}

// UpdateRole handles PUT /api/v1/projects/{id}/members/{userID}
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	project, access, err := h.loadProject(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authz.CanAdminister(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	member, err := h.loadMember(r, project)
	if err != nil {
		writeError(w, err)
		return
	}

	if member.Role == models.RoleOwner {
		soleOwner, err := h.isSoleOwner(project, member)
		if err != nil {
			writeError(w, err)
			return
		}
		if soleOwner {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Cannot demote the only owner"})
			return
		}
	}

	if err := h.db.Model(member).Update("role", models.ProjectRole(req.Role)).Error; err != nil {
		writeError(w, err)
		return
	}
	member.Role = models.ProjectRole(req.Role)

	writeJSON(w, http.StatusOK, memberToResponse(member))
}

// Remove handles DELETE /api/v1/projects/{id}/members/{userID}. Admins can
// remove anyone; any member can remove themselves.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	project, access, err := h.loadProject(r, p)
	if err != nil {
		writeError(w, err)
		return
	}

	member, err := h.loadMember(r, project)
	if err != nil {
		writeError(w, err)
		return
	}

	selfLeave := member.UserID == p.UserID
	if !selfLeave && !authz.CanAdminister(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	if member.Role == models.RoleOwner {
		soleOwner, err := h.isSoleOwner(project, member)
		if err != nil {
			writeError(w, err)
			return
		}
		if soleOwner {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Cannot remove the only owner"})
			return
		}
	}

	// Hard delete: the unique (project_id, user_id) index must free the slot,
	// otherwise a removed member could never be re-admitted.
	if err := h.db.Unscoped().Delete(member).Error; err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}

func (h *MemberHandler) isSoleOwner(project *models.Project, member *models.ProjectMember) (bool, error) {
	var otherOwners int64
	err := h.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role = ? AND id != ?", project.ID, models.RoleOwner, member.ID).
		Count(&otherOwners).Error
	if err != nil {
		return false, err
	}
	return otherOwners == 0, nil
}

func (h *MemberHandler) loadProject(r *http.Request, p *authz.Principal) (*models.Project, authz.Access, error) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, authz.Access{}, authz.ErrNotFound
	}

	var project models.Project
	if err := h.db.First(&project, "id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, authz.Access{}, authz.ErrNotFound
		}
		return nil, authz.Access{}, err
	}

	if err := authz.EnsureSameTenant(p.TenantID, project.TenantID); err != nil {
		return nil, authz.Access{}, err
	}

	access, err := h.authz.ResolveAccess(r.Context(), p.UserID, project.ID, p.TenantID)
	if err != nil {
		return nil, authz.Access{}, err
	}

	return &project, access, nil
}

func (h *MemberHandler) loadMember(r *http.Request, project *models.Project) (*models.ProjectMember, error) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return nil, authz.ErrNotFound
	}

	var member models.ProjectMember
	err = h.db.Preload("User").
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}
