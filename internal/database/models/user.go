package models

import "github.com/google/uuid"

type User struct {
	Base
	Email        string    `gorm:"uniqueIndex:idx_tenant_email;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Name         string    `json:"name"`
	TenantID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_tenant_email;index" json:"tenant_id"`
	Role         string    `gorm:"default:'member'" json:"role"` // tenant-level: owner, admin, member
	IsActive     bool      `gorm:"default:true" json:"is_active"`

	// Relationships
	Tenant  *Tenant  `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Profile *Profile `gorm:"foreignKey:ID" json:"profile,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Profile is the user-facing identity. It shares its primary key with User
// (one-to-one, same lifecycle).
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

func (Profile) TableName() string {
	return "profiles"
}
