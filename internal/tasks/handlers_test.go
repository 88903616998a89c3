package tasks

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hollis/taskpilot/internal/database/models"
	"github.com/hollis/taskpilot/internal/notify"
	"github.com/hollis/taskpilot/internal/testutil"
	"github.com/hollis/taskpilot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestHandler(t *testing.T, db *gorm.DB) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	// Empty host keeps the mailer in no-op mode.
	mailer := notify.NewMailer(config.SMTPConfig{}, logger)
	return NewHandler(db, logger, mailer)
}

func TestNewHandler(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	handler := newTestHandler(t, setup.DB)

	assert.NotNil(t, handler)
	assert.NotNil(t, handler.db)
	assert.NotNil(t, handler.logger)
	assert.NotNil(t, handler.notifier)
	assert.NotNil(t, handler.mailer)
}

func TestHandleInvitationEmail_InvalidPayload(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	handler := newTestHandler(t, setup.DB)

	task := asynq.NewTask(TypeInvitationEmail, []byte("invalid json"))

	err := handler.HandleInvitationEmail(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
}

func TestHandleInvitationEmail_MissingInvitation(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	handler := newTestHandler(t, setup.DB)

	task, err := NewInvitationEmailTask(InvitationEmailPayload{InvitationID: uuid.New()})
	require.NoError(t, err)

	// A row deleted before delivery is not a retryable failure.
	err = handler.HandleInvitationEmail(context.Background(), task)
	assert.NoError(t, err)
}

func TestHandleInvitationEmail_ConsumedInvitation(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	project := testutil.CreateTestProject(t, setup.DB, setup.Tenant, setup.User)
	inv := testutil.CreateTestInvitation(t, setup.DB, project, setup.User.ID, "invitee@example.com", models.RoleMember)

	require.NoError(t, setup.DB.Model(inv).Update("status", models.InvitationStatusAccepted).Error)

	handler := newTestHandler(t, setup.DB)
	task, err := NewInvitationEmailTask(InvitationEmailPayload{InvitationID: inv.ID})
	require.NoError(t, err)

	err = handler.HandleInvitationEmail(context.Background(), task)
	assert.NoError(t, err)
}

func TestHandleUserNotify_WritesNotification(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	handler := newTestHandler(t, setup.DB)

	task, err := NewUserNotifyTask(UserNotifyPayload{
		UserID:   setup.User.ID,
		TenantID: setup.Tenant.ID,
		Kind:     models.NotificationJoinRequestReceived,
		Payload:  map[string]string{"project_id": uuid.New().String()},
	})
	require.NoError(t, err)

	err = handler.HandleUserNotify(context.Background(), task)
	require.NoError(t, err)

	var notifications []models.Notification
	require.NoError(t, setup.DB.Where("user_id = ?", setup.User.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationJoinRequestReceived, notifications[0].Type)
	assert.False(t, notifications[0].Read)
}

func TestHandleActivityRecord_WritesActivity(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	project := testutil.CreateTestProject(t, setup.DB, setup.Tenant, setup.User)
	handler := newTestHandler(t, setup.DB)

	task, err := NewActivityRecordTask(ActivityRecordPayload{
		TenantID:  setup.Tenant.ID,
		ProjectID: project.ID,
		ActorID:   setup.User.ID,
		Action:    "member.joined",
		Detail:    "invitation accepted",
	})
	require.NoError(t, err)

	err = handler.HandleActivityRecord(context.Background(), task)
	require.NoError(t, err)

	var entries []models.Activity
	require.NoError(t, setup.DB.Where("project_id = ?", project.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "member.joined", entries[0].Action)
}

func TestHandleInvitationSweep(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	project := testutil.CreateTestProject(t, setup.DB, setup.Tenant, setup.User)

	stale := testutil.CreateTestInvitation(t, setup.DB, project, setup.User.ID, "stale@example.com", models.RoleMember)
	require.NoError(t, setup.DB.Model(stale).Update("expires_at", time.Now().Add(-time.Hour)).Error)

	fresh := testutil.CreateTestInvitation(t, setup.DB, project, setup.User.ID, "fresh@example.com", models.RoleMember)

	handler := newTestHandler(t, setup.DB)
	err := handler.HandleInvitationSweep(context.Background(), NewInvitationSweepTask())
	require.NoError(t, err)

	var got models.Invitation
	require.NoError(t, setup.DB.First(&got, "id = ?", stale.ID).Error)
	assert.Equal(t, models.InvitationStatusExpired, got.Status)

	var gotFresh models.Invitation
	require.NoError(t, setup.DB.First(&gotFresh, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.InvitationStatusPending, gotFresh.Status)
}
