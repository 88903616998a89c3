package tasks

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Dispatcher enqueues post-commit side effects. The primary state transition
// has already committed by the time any of these run, so every method is
// fire-and-forget: enqueue failures are logged and swallowed, never turned
// into request failures.
type Dispatcher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewDispatcher(client *asynq.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

func (d *Dispatcher) SendInvitationEmail(ctx context.Context, invitationID uuid.UUID) {
	task, err := NewInvitationEmailTask(InvitationEmailPayload{InvitationID: invitationID})
	if err != nil {
		d.logger.Error("failed to build invitation email task", "invitation_id", invitationID, "error", err)
		return
	}
	d.enqueue(ctx, task, "invitation email")
}

func (d *Dispatcher) NotifyUser(ctx context.Context, userID, tenantID uuid.UUID, kind string, payload map[string]string) {
	task, err := NewUserNotifyTask(UserNotifyPayload{
		UserID:   userID,
		TenantID: tenantID,
		Kind:     kind,
		Payload:  payload,
	})
	if err != nil {
		d.logger.Error("failed to build notify task", "user_id", userID, "kind", kind, "error", err)
		return
	}
	d.enqueue(ctx, task, "user notification")
}

func (d *Dispatcher) RecordActivity(ctx context.Context, tenantID, projectID, actorID uuid.UUID, action, detail string) {
	task, err := NewActivityRecordTask(ActivityRecordPayload{
		TenantID:  tenantID,
		ProjectID: projectID,
		ActorID:   actorID,
		Action:    action,
		Detail:    detail,
	})
	if err != nil {
		d.logger.Error("failed to build activity task", "project_id", projectID, "action", action, "error", err)
		return
	}
	d.enqueue(ctx, task, "activity record")
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task, what string) {
	if d.client == nil {
		d.logger.Debug("no queue client configured, dropping task", "task", what)
		return
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		d.logger.Error("failed to enqueue task", "task", what, "error", err)
	}
}
