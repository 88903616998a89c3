package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Invitation is an email-targeted, token-bearing offer to join a project.
// The token is a capability: whoever presents it (and signs in with the
// matching email) may accept. Rows are never deleted, only transitioned.
type Invitation struct {
	Base
	TenantID  uuid.UUID        `gorm:"type:uuid;index;not null" json:"tenant_id"`
	ProjectID uuid.UUID        `gorm:"type:uuid;index;not null" json:"project_id"`
	Email     string           `gorm:"index;not null" json:"email"` // stored lowercased
	Role      ProjectRole      `gorm:"not null;default:'member'" json:"role"`
	Status    InvitationStatus `gorm:"default:'pending';index" json:"status"`
	Token     string           `gorm:"uniqueIndex;not null" json:"-"`
	InvitedBy uuid.UUID        `gorm:"type:uuid" json:"invited_by"`
	ExpiresAt time.Time        `gorm:"not null" json:"expires_at"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
