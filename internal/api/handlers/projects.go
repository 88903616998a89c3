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

type ProjectHandler struct {
	db    *gorm.DB
	authz *authz.Service
}

func NewProjectHandler(db *gorm.DB, authzService *authz.Service) *ProjectHandler {
	return &ProjectHandler{db: db, authz: authzService}
}

// CreateProjectRequest represents the request to create a project
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if len(r.Name) > 200 {
		errors["name"] = "Name must be at most 200 characters"
	}
	return errors
}

// UpdateProjectRequest represents the request to update a project
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (r UpdateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.Status != nil {
		validStatuses := map[string]bool{
			"active": true, "on_hold": true, "completed": true, "archived": true,
		}
		if !validStatuses[*r.Status] {
			errors["status"] = "Invalid project status"
		}
	}
	return errors
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	JoinCode    string `json:"join_code,omitempty"`
	CreatedBy   string `json:"created_by"`
	Role        string `json:"role,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func projectToResponse(project *models.Project, role models.ProjectRole) ProjectResponse {
	resp := ProjectResponse{
		ID:          project.ID.String(),
		Name:        project.Name,
		Description: project.Description,
		Status:      string(project.Status),
		CreatedBy:   project.CreatedBy.String(),
		Role:        string(role),
		CreatedAt:   project.CreatedAt.Format(time.RFC3339),
	}
	// The join code invites anyone who sees it, so only administering
	// members get it.
	if authz.CanAdminister(role) {
		resp.JoinCode = project.JoinCode
	}
	return resp
}

// List handles GET /api/v1/projects. Returns the projects the caller can
// access: explicit memberships plus projects they created.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	pagination := dto.PaginationFromQuery(r.URL.Query())

	// Raw join: gorm's soft-delete scope only covers the primary model, so
	// the membership side filters deleted rows explicitly.
	query := h.db.Model(&models.Project{}).
		Joins("LEFT JOIN project_members pm ON pm.project_id = projects.id AND pm.user_id = ? AND pm.deleted_at IS NULL", p.UserID).
		Where("projects.tenant_id = ? AND (pm.id IS NOT NULL OR projects.created_by = ?)", p.TenantID, p.UserID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, err)
		return
	}

	var projects []models.Project
	if err := query.
		Order("projects.created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&projects).Error; err != nil {
		writeError(w, err)
		return
	}

	response := make([]ProjectResponse, len(projects))
	for i, project := range projects {
		access, err := h.authz.ResolveAccess(r.Context(), p.UserID, project.ID, p.TenantID)
		if err != nil {
			writeError(w, err)
			return
		}
		response[i] = projectToResponse(&project, access.Role)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	code, err := generateJoinCode(h.db)
	if err != nil {
		writeError(w, err)
		return
	}

	project := models.Project{
		TenantID:    p.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.ProjectStatusActive,
		JoinCode:    code,
		CreatedBy:   p.UserID,
	}

	// Project row and owner membership land in one transaction so the
	// creator-fallback window never survives a commit.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		member := models.ProjectMember{
			TenantID:  p.TenantID,
			ProjectID: project.ID,
			UserID:    p.UserID,
			Role:      models.RoleOwner,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, projectToResponse(&project, models.RoleOwner))
}

// Get handles GET /api/v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	project, access, err := h.loadWithAccess(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !access.HasAccess {
		writeError(w, authz.ErrForbidden)
		return
	}

	writeJSON(w, http.StatusOK, projectToResponse(project, access.Role))
}

// Update handles PUT /api/v1/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	project, access, err := h.loadWithAccess(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authz.CanAdminister(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) > 0 {
		if err := h.db.Model(project).Updates(updates).Error; err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, projectToResponse(project, access.Role))
}

// Delete handles DELETE /api/v1/projects/{id}. Owner only; removes the
// project and everything hanging off it in one transaction.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	project, access, err := h.loadWithAccess(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authz.CanDeleteProject(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	// Hard deletes throughout: membership rows must leave the unique
	// (project_id, user_id) index and the project must release its join code.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.Task{},
			&models.ProjectMember{},
			&models.Invitation{},
			&models.JoinRequest{},
			&models.Activity{},
		} {
			if err := tx.Unscoped().Where("project_id = ?", project.ID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(project).Error
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project deleted"})
}

// Activity handles GET /api/v1/projects/{id}/activity
func (h *ProjectHandler) Activity(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	project, access, err := h.loadWithAccess(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !access.HasAccess {
		writeError(w, authz.ErrForbidden)
		return
	}

	var entries []models.Activity
	if err := h.db.
		Where("project_id = ?", project.ID).
		Order("created_at DESC").
		Limit(100).
		Find(&entries).Error; err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// loadWithAccess loads the {id} project, applies the tenant guard and
// resolves the caller's access in the order the rest of the API relies on:
// missing project reads as NotFound, foreign tenant as a mismatch.
func (h *ProjectHandler) loadWithAccess(r *http.Request, p *authz.Principal) (*models.Project, authz.Access, error) {
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
