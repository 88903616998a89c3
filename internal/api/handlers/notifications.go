package handlers

import (
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

type NotificationHandler struct {
	db *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func notificationToResponse(n *models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID.String(),
		Type:      n.Type,
		Payload:   n.Payload,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/notifications. Always scoped to the caller.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	query := h.db.Model(&models.Notification{}).
		Where("user_id = ? AND tenant_id = ?", p.UserID, p.TenantID)

	if r.URL.Query().Get("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(100).
		Find(&notifications).Error; err != nil {
		writeError(w, err)
		return
	}

	response := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		response[i] = notificationToResponse(&n)
	}

	writeJSON(w, http.StatusOK, response)
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	notificationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, authz.ErrNotFound)
		return
	}

	result := h.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, p.UserID).
		Update("read", true)
	if result.Error != nil {
		writeError(w, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, authz.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Notification marked as read"})
}

// MarkAllRead handles POST /api/v1/notifications/read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	err := h.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", p.UserID, false).
		Update("read", true).Error
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "All notifications marked as read"})
}
