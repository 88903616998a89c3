package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/database/models"
	"github.com/hollis/taskpilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotification(t *testing.T, ts *testServer, user *models.User, kind string, read bool) *models.Notification {
	t.Helper()
	n := &models.Notification{
		TenantID: user.TenantID,
		UserID:   user.ID,
		Type:     kind,
		Payload:  "{}",
		Read:     read,
	}
	require.NoError(t, ts.DB.Create(n).Error)
	return n
}

func TestListNotifications(t *testing.T) {
	ts := newTestServer(t)

	seedNotification(t, ts, ts.User, models.NotificationJoinRequestReceived, false)
	seedNotification(t, ts, ts.User, models.NotificationInvitationAccepted, true)

	other := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
	seedNotification(t, ts, other, models.NotificationJoinRequestReceived, false)

	t.Run("scoped to the caller", func(t *testing.T) {
		rr := ts.do(t, http.MethodGet, "/api/v1/notifications", nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var list []map[string]interface{}
		testutil.ParseJSONResponse(t, rr, &list)
		assert.Len(t, list, 2)
	})

	t.Run("unread filter", func(t *testing.T) {
		rr := ts.do(t, http.MethodGet, "/api/v1/notifications?unread=true", nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var list []map[string]interface{}
		testutil.ParseJSONResponse(t, rr, &list)
		require.Len(t, list, 1)
		assert.Equal(t, models.NotificationJoinRequestReceived, list[0]["type"])
	})
}

func TestMarkNotificationRead(t *testing.T) {
	ts := newTestServer(t)

	t.Run("marks own notification", func(t *testing.T) {
		n := seedNotification(t, ts, ts.User, models.NotificationInvitationDeclined, false)

		rr := ts.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID.String()+"/read", nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var got models.Notification
		require.NoError(t, ts.DB.First(&got, "id = ?", n.ID).Error)
		assert.True(t, got.Read)
	})

	t.Run("cannot mark someone else's", func(t *testing.T) {
		other := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		n := seedNotification(t, ts, other, models.NotificationJoinRequestAccepted, false)

		rr := ts.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID.String()+"/read", nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestMarkAllNotificationsRead(t *testing.T) {
	ts := newTestServer(t)

	seedNotification(t, ts, ts.User, models.NotificationJoinRequestReceived, false)
	seedNotification(t, ts, ts.User, models.NotificationJoinRequestDeclined, false)

	rr := ts.do(t, http.MethodPost, "/api/v1/notifications/read", nil, ts.Token)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var unread int64
	require.NoError(t, ts.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", ts.User.ID, false).
		Count(&unread).Error)
	assert.Zero(t, unread)
}
