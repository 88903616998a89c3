package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hollis/taskpilot/internal/api/dto"
	"github.com/hollis/taskpilot/internal/api/middleware"
	"github.com/hollis/taskpilot/internal/auth"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

type MeHandler struct {
	db          *gorm.DB
	authService *auth.Service
}

func NewMeHandler(db *gorm.DB, authService *auth.Service) *MeHandler {
	return &MeHandler{db: db, authService: authService}
}

// MeResponse represents the current user with their profile
type MeResponse struct {
	User    dto.UserDTO     `json:"user"`
	Profile *models.Profile `json:"profile,omitempty"`
}

// Get handles GET /api/v1/me
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	user, err := h.authService.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		User:    userToDTO(user),
		Profile: user.Profile,
	})
}

// UpdateProfile handles PUT /api/v1/me/profile
func (h *MeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	profile := models.Profile{
		ID:          p.UserID,
		TenantID:    p.TenantID,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	}

	// Profile shares the user's id, so save is an upsert in effect.
	err := h.db.Where("id = ?", p.UserID).
		Assign(map[string]interface{}{
			"display_name": req.DisplayName,
			"avatar_url":   req.AvatarURL,
		}).
		FirstOrCreate(&profile).Error
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
