package models

import "github.com/google/uuid"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

type Project struct {
	Base
	TenantID    uuid.UUID     `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `gorm:"default:'active'" json:"status"`
	JoinCode    string        `gorm:"uniqueIndex;not null" json:"join_code"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid;index" json:"created_by"`

	// Relationships
	Members      []ProjectMember `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Tasks        []Task          `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Invitations  []Invitation    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	JoinRequests []JoinRequest   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Activity     []Activity      `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

type ProjectRole string

const (
	// RoleNone is the absence of a role; every permission predicate
	// answers false for it.
	RoleNone   ProjectRole = ""
	RoleOwner  ProjectRole = "owner"
	RoleAdmin  ProjectRole = "admin"
	RoleMember ProjectRole = "member"
	RoleViewer ProjectRole = "viewer"
)

// ParseProjectRole maps a wire string onto the closed role set.
func ParseProjectRole(s string) (ProjectRole, bool) {
	switch ProjectRole(s) {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return ProjectRole(s), true
	}
	return RoleNone, false
}

// ProjectMember is the authoritative access-control edge. The unique index on
// (project_id, user_id) is the storage-level backstop against duplicate
// memberships under concurrent invitation/join-request acceptance.
type ProjectMember struct {
	Base
	TenantID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"tenant_id"`
	ProjectID uuid.UUID   `gorm:"type:uuid;uniqueIndex:idx_project_user;not null" json:"project_id"`
	UserID    uuid.UUID   `gorm:"type:uuid;uniqueIndex:idx_project_user;not null" json:"user_id"`
	Role      ProjectRole `gorm:"not null;default:'member'" json:"role"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
