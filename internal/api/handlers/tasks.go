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

type TaskHandler struct {
	db    *gorm.DB
	authz *authz.Service
}

func NewTaskHandler(db *gorm.DB, authzService *authz.Service) *TaskHandler {
	return &TaskHandler{db: db, authz: authzService}
}

// CreateTaskRequest represents the request to create a task
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
}

func (r CreateTaskRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	if r.Priority != "" {
		validPriorities := map[string]bool{"low": true, "medium": true, "high": true}
		if !validPriorities[r.Priority] {
			errors["priority"] = "Invalid priority"
		}
	}
	if r.AssigneeID != nil && *r.AssigneeID != "" {
		if _, err := uuid.Parse(*r.AssigneeID); err != nil {
			errors["assignee_id"] = "Invalid assignee ID format"
		}
	}
	if r.DueAt != nil && *r.DueAt != "" {
		if _, err := time.Parse(time.RFC3339, *r.DueAt); err != nil {
			errors["due_at"] = "Due date must be RFC3339"
		}
	}
	return errors
}

// UpdateTaskRequest represents the request to update a task
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
}

func (r UpdateTaskRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Title != nil && *r.Title == "" {
		errors["title"] = "Title cannot be empty"
	}
	if r.Status != nil {
		validStatuses := map[string]bool{"todo": true, "in_progress": true, "done": true}
		if !validStatuses[*r.Status] {
			errors["status"] = "Invalid status"
		}
	}
	if r.Priority != nil {
		validPriorities := map[string]bool{"low": true, "medium": true, "high": true}
		if !validPriorities[*r.Priority] {
			errors["priority"] = "Invalid priority"
		}
	}
	if r.AssigneeID != nil && *r.AssigneeID != "" {
		if _, err := uuid.Parse(*r.AssigneeID); err != nil {
			errors["assignee_id"] = "Invalid assignee ID format"
		}
	}
	if r.DueAt != nil && *r.DueAt != "" {
		if _, err := time.Parse(time.RFC3339, *r.DueAt); err != nil {
			errors["due_at"] = "Due date must be RFC3339"
		}
	}
	return errors
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
}

func taskToResponse(task *models.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID.String(),
		ProjectID:   task.ProjectID.String(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		CreatedBy:   task.CreatedBy.String(),
		CreatedAt:   task.CreatedAt.Format(time.RFC3339),
	}
	if task.AssigneeID != nil {
		s := task.AssigneeID.String()
		resp.AssigneeID = &s
	}
	if task.DueAt != nil {
		s := task.DueAt.Format(time.RFC3339)
		resp.DueAt = &s
	}
	return resp
}

// List handles GET /api/v1/projects/{id}/tasks. Readable by any role,
// Viewer included.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
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

	pagination := dto.PaginationFromQuery(r.URL.Query())

	query := h.db.Model(&models.Task{}).Where("project_id = ?", project.ID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignee := r.URL.Query().Get("assignee_id"); assignee != "" {
		query = query.Where("assignee_id = ?", assignee)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, err)
		return
	}

	var tasks []models.Task
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&tasks).Error; err != nil {
		writeError(w, err)
		return
	}

	response := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		response[i] = taskToResponse(&task)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/projects/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req CreateTaskRequest
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
	if !authz.CanWrite(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	task := models.Task{
		TenantID:    project.TenantID,
		ProjectID:   project.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriorityMedium,
		CreatedBy:   p.UserID,
	}
	if req.Priority != "" {
		task.Priority = models.TaskPriority(req.Priority)
	}
	if err := h.applyAssignee(project, &task, req.AssigneeID); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Assignee is not a member of this project"})
		return
	}
	if req.DueAt != nil && *req.DueAt != "" {
		due, _ := time.Parse(time.RFC3339, *req.DueAt)
		task.DueAt = &due
	}

	if err := h.db.Create(&task).Error; err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, taskToResponse(&task))
}

// Get handles GET /api/v1/projects/{id}/tasks/{taskID}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	task, err := h.loadTask(r, project)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskToResponse(task))
}

// Update handles PUT /api/v1/projects/{id}/tasks/{taskID}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req UpdateTaskRequest
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
	if !authz.CanWrite(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	task, err := h.loadTask(r, project)
	if err != nil {
		writeError(w, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == "" {
			updates["assignee_id"] = nil
		} else {
			if err := h.applyAssignee(project, task, req.AssigneeID); err != nil {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Assignee is not a member of this project"})
				return
			}
			updates["assignee_id"] = *task.AssigneeID
		}
	}
	if req.DueAt != nil {
		if *req.DueAt == "" {
			updates["due_at"] = nil
		} else {
			due, _ := time.Parse(time.RFC3339, *req.DueAt)
			updates["due_at"] = due
		}
	}

	if len(updates) > 0 {
		if err := h.db.Model(task).Updates(updates).Error; err != nil {
			writeError(w, err)
			return
		}
		if err := h.db.First(task, "id = ?", task.ID).Error; err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, taskToResponse(task))
}

// Delete handles DELETE /api/v1/projects/{id}/tasks/{taskID}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	project, access, err := h.loadProject(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authz.CanWrite(access.Role) {
		writeError(w, authz.ErrForbidden)
		return
	}

	task, err := h.loadTask(r, project)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.db.Delete(task).Error; err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task deleted"})
}

// applyAssignee sets the task assignee after verifying project access. A
// non-member assignee is rejected rather than silently stored.
func (h *TaskHandler) applyAssignee(project *models.Project, task *models.Task, assigneeID *string) error {
	if assigneeID == nil || *assigneeID == "" {
		return nil
	}
	id, _ := uuid.Parse(*assigneeID)

	var count int64
	err := h.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, id).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 && project.CreatedBy != id {
		return authz.ErrForbidden
	}
	task.AssigneeID = &id
	return nil
}

func (h *TaskHandler) loadProject(r *http.Request, p *authz.Principal) (*models.Project, authz.Access, error) {
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

func (h *TaskHandler) loadTask(r *http.Request, project *models.Project) (*models.Task, error) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		return nil, authz.ErrNotFound
	}

	var task models.Task
	err = h.db.Where("id = ? AND project_id = ?", taskID, project.ID).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}
