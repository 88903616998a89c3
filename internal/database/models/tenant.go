package models

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

type Tenant struct {
	Base
	Name        string       `gorm:"not null" json:"name"`
	Slug        string       `gorm:"uniqueIndex;not null" json:"slug"`
	Plan        string       `gorm:"default:'free'" json:"plan"` // free, pro, enterprise
	Status      TenantStatus `gorm:"default:'active'" json:"status"`
	MaxUsers    int          `gorm:"default:5" json:"max_users"`
	MaxProjects int          `gorm:"default:10" json:"max_projects"`

	// Relationships
	Users    []User    `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Projects []Project `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}
