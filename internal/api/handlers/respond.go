package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hollis/taskpilot/internal/api/dto"
	"github.com/hollis/taskpilot/internal/authz"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the authz error taxonomy onto HTTP statuses. Tenant
// mismatch deliberately reads as Forbidden so a foreign-tenant caller learns
// nothing beyond "not yours".
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
	case errors.Is(err, authz.ErrTenantMismatch):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
	case errors.Is(err, authz.ErrForbidden):
		// Wrapped detail (e.g. which email an invitation was issued to)
		// is safe to surface.
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, authz.ErrConflict):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, authz.ErrGone):
		writeJSON(w, http.StatusGone, dto.ErrorResponse{Error: "No longer available"})
	case errors.Is(err, authz.ErrTenantInactive):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Tenant is not active"})
	case errors.Is(err, authz.ErrPrincipalNotFound):
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}
