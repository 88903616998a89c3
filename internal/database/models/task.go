package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

type Task struct {
	Base
	TenantID    uuid.UUID    `gorm:"type:uuid;index;not null" json:"tenant_id"`
	ProjectID   uuid.UUID    `gorm:"type:uuid;index;not null" json:"project_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `gorm:"default:'todo'" json:"status"`
	Priority    TaskPriority `gorm:"default:'medium'" json:"priority"`
	AssigneeID  *uuid.UUID   `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	DueAt       *time.Time   `json:"due_at,omitempty"`
	CreatedBy   uuid.UUID    `gorm:"type:uuid" json:"created_by"`
}

func (Task) TableName() string {
	return "tasks"
}
