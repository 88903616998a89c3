package models

import "github.com/google/uuid"

type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "pending"
	JoinRequestStatusAccepted JoinRequestStatus = "accepted"
	JoinRequestStatusDeclined JoinRequestStatus = "declined"
)

// JoinRequest is a user-initiated request to join a project discovered via
// its join code. Acceptance always grants the Member role.
type JoinRequest struct {
	Base
	TenantID  uuid.UUID         `gorm:"type:uuid;index;not null" json:"tenant_id"`
	ProjectID uuid.UUID         `gorm:"type:uuid;index:idx_request_project_user;not null" json:"project_id"`
	UserID    uuid.UUID         `gorm:"type:uuid;index:idx_request_project_user;not null" json:"user_id"`
	Message   string            `json:"message"`
	Status    JoinRequestStatus `gorm:"default:'pending';index" json:"status"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (JoinRequest) TableName() string {
	return "join_requests"
}
