package authz

import "github.com/google/uuid"

// Principal is the authenticated actor. It is resolved once per request and
// passed explicitly into every core call; the core never reads an ambient
// "current user".
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Email    string
}
