package models

import "github.com/google/uuid"

// Notification kinds written by the lifecycle services.
const (
	NotificationJoinRequestReceived = "join_request.received"
	NotificationJoinRequestAccepted = "join_request.accepted"
	NotificationJoinRequestDeclined = "join_request.declined"
	NotificationInvitationAccepted  = "invitation.accepted"
	NotificationInvitationDeclined  = "invitation.declined"
)

// Notification is an append-only record of an event relevant to one user.
type Notification struct {
	Base
	TenantID uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Type     string    `gorm:"not null" json:"type"`
	Payload  string    `gorm:"type:text;default:'{}'" json:"payload"`
	Read     bool      `gorm:"default:false;index" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Activity is the append-only per-project audit trail.
type Activity struct {
	Base
	TenantID  uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid" json:"user_id"`
	Action    string    `gorm:"not null" json:"action"`
	Detail    string    `json:"detail"`
}

func (Activity) TableName() string {
	return "activities"
}
