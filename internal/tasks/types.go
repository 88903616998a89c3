package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeInvitationEmail = "email:invitation"
	TypeUserNotify      = "notify:user"
	TypeActivityRecord  = "activity:record"
	TypeInvitationSweep = "invitation:sweep"
)

// InvitationEmailPayload identifies the invitation to deliver. The handler
// re-reads the row so a stale queue entry for a consumed invitation is a
// no-op.
type InvitationEmailPayload struct {
	InvitationID uuid.UUID `json:"invitation_id"`
}

func NewInvitationEmailTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitationEmail, data), nil
}

// UserNotifyPayload carries one notification for one user.
type UserNotifyPayload struct {
	UserID   uuid.UUID         `json:"user_id"`
	TenantID uuid.UUID         `json:"tenant_id"`
	Kind     string            `json:"kind"`
	Payload  map[string]string `json:"payload"`
}

func NewUserNotifyTask(payload UserNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUserNotify, data), nil
}

// ActivityRecordPayload appends one entry to a project's activity trail.
type ActivityRecordPayload struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	ProjectID uuid.UUID `json:"project_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
}

func NewActivityRecordTask(payload ActivityRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeActivityRecord, data), nil
}

// InvitationSweepPayload is empty - the sweep covers all tenants.
type InvitationSweepPayload struct{}

func NewInvitationSweepTask() *asynq.Task {
	return asynq.NewTask(TypeInvitationSweep, nil)
}
