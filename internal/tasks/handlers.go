package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hollis/taskpilot/internal/database/models"
	"github.com/hollis/taskpilot/internal/notify"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier *notify.Service
	mailer   *notify.Mailer
}

func NewHandler(db *gorm.DB, logger *slog.Logger, mailer *notify.Mailer) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		notifier: notify.NewService(db, logger),
		mailer:   mailer,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitationEmail, h.HandleInvitationEmail)
	mux.HandleFunc(TypeUserNotify, h.HandleUserNotify)
	mux.HandleFunc(TypeActivityRecord, h.HandleActivityRecord)
	mux.HandleFunc(TypeInvitationSweep, h.HandleInvitationSweep)
}

func (h *Handler) HandleInvitationEmail(ctx context.Context, t *asynq.Task) error {
	var payload InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var inv models.Invitation
	err := h.db.WithContext(ctx).
		Preload("Project").
		First(&inv, "id = ?", payload.InvitationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Warn("invitation gone before email was sent", "invitation_id", payload.InvitationID)
			return nil
		}
		return err
	}

	// The invitation may have been consumed or expired while queued.
	if inv.Status != models.InvitationStatusPending || inv.Expired(time.Now()) {
		h.logger.Info("skipping email for non-pending invitation",
			"invitation_id", inv.ID,
			"status", inv.Status,
		)
		return nil
	}

	projectName := "a project"
	if inv.Project != nil {
		projectName = inv.Project.Name
	}

	if err := h.mailer.SendInvitation(inv.Email, projectName, string(inv.Role), inv.Token, inv.ExpiresAt); err != nil {
		h.logger.Error("failed to send invitation email",
			"invitation_id", inv.ID,
			"to", inv.Email,
			"error", err,
		)
		return err
	}

	h.logger.Info("sent invitation email", "invitation_id", inv.ID, "to", inv.Email)
	return nil
}

func (h *Handler) HandleUserNotify(ctx context.Context, t *asynq.Task) error {
	var payload UserNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return h.notifier.Write(ctx, payload.UserID, payload.TenantID, payload.Kind, payload.Payload)
}

func (h *Handler) HandleActivityRecord(ctx context.Context, t *asynq.Task) error {
	var payload ActivityRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return h.notifier.RecordActivity(ctx, payload.TenantID, payload.ProjectID, payload.ActorID, payload.Action, payload.Detail)
}

// HandleInvitationSweep marks expired pending invitations. Hygiene only:
// correctness relies on the lazy expiry check at lookup time, so a missed or
// late sweep is harmless.
func (h *Handler) HandleInvitationSweep(ctx context.Context, t *asynq.Task) error {
	res := h.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationStatusPending, time.Now()).
		Update("status", models.InvitationStatusExpired)
	if res.Error != nil {
		return fmt.Errorf("sweeping expired invitations: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		h.logger.Info("expired invitations swept", "count", res.RowsAffected)
	}
	return nil
}
