package authz

import "github.com/hollis/taskpilot/internal/database/models"

// Permission predicates over the closed project role set. All of them are
// pure, total, and answer false for RoleNone and anything outside the set.
// Exhaustive switches so that adding a role forces every predicate to be
// revisited.

// CanWrite reports whether the role may create and mutate project content.
// Viewer is read-only.
func CanWrite(role models.ProjectRole) bool {
	switch role {
	case models.RoleOwner, models.RoleAdmin, models.RoleMember:
		return true
	case models.RoleViewer, models.RoleNone:
		return false
	}
	return false
}

// CanAdminister reports whether the role may manage members, invitations and
// join requests.
func CanAdminister(role models.ProjectRole) bool {
	switch role {
	case models.RoleOwner, models.RoleAdmin:
		return true
	case models.RoleMember, models.RoleViewer, models.RoleNone:
		return false
	}
	return false
}

// CanDeleteProject is stricter than CanAdminister: deletion is Owner-only.
func CanDeleteProject(role models.ProjectRole) bool {
	return role == models.RoleOwner
}
