package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hollis/taskpilot/internal/database/models"
	"github.com/hollis/taskpilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMembers(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)

	member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
	testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

	t.Run("any member can list the roster", func(t *testing.T) {
		rr := ts.do(t, http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/members", nil, ts.tokenFor(t, member))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var roster []MemberResponse
		testutil.ParseJSONResponse(t, rr, &roster)
		require.Len(t, roster, 2)
		assert.Equal(t, ts.User.ID.String(), roster[0].UserID)
		assert.Equal(t, string(models.RoleOwner), roster[0].Role)
		assert.Equal(t, member.Email, roster[1].Email)
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		rr := ts.do(t, http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/members", nil, ts.tokenFor(t, stranger))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestUpdateMemberRole(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)

	t.Run("owner promotes viewer to member", func(t *testing.T) {
		viewer := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, viewer, models.RoleViewer)

		rr := ts.do(t, http.MethodPut, "/api/v1/projects/"+project.ID.String()+"/members/"+viewer.ID.String(),
			map[string]string{"role": "member"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp MemberResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "member", resp.Role)
	})

	t.Run("role update cannot mint an owner", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		rr := ts.do(t, http.MethodPut, "/api/v1/projects/"+project.ID.String()+"/members/"+member.ID.String(),
			map[string]string{"role": "owner"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("plain member cannot change roles", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		target := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, target, models.RoleViewer)

		rr := ts.do(t, http.MethodPut, "/api/v1/projects/"+project.ID.String()+"/members/"+target.ID.String(),
			map[string]string{"role": "member"}, ts.tokenFor(t, member))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("sole owner cannot be demoted", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, "/api/v1/projects/"+project.ID.String()+"/members/"+ts.User.ID.String(),
			map[string]string{"role": "admin"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestRemoveMember(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)

	t.Run("admin removes a member", func(t *testing.T) {
		admin := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, admin, models.RoleAdmin)

		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		rr := ts.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String()+"/members/"+member.ID.String(),
			nil, ts.tokenFor(t, admin))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var count int64
		require.NoError(t, ts.DB.Model(&models.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", project.ID, member.ID).
			Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("member can leave on their own", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		rr := ts.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String()+"/members/"+member.ID.String(),
			nil, ts.tokenFor(t, member))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("member cannot remove someone else", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		target := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, target, models.RoleMember)

		rr := ts.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String()+"/members/"+target.ID.String(),
			nil, ts.tokenFor(t, member))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("sole owner cannot leave", func(t *testing.T) {
		rr := ts.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String()+"/members/"+ts.User.ID.String(),
			nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("removed member can be re-admitted by invitation", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		rr := ts.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String()+"/members/"+member.ID.String(),
			nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = ts.do(t, http.MethodPost, "/api/v1/projects/"+project.ID.String()+"/invitations",
			map[string]string{"email": member.Email, "role": "member"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var inv models.Invitation
		require.NoError(t, ts.DB.
			Where("project_id = ? AND email = ? AND status = ?", project.ID, member.Email, models.InvitationStatusPending).
			First(&inv).Error)

		rr = ts.do(t, http.MethodPost, "/api/v1/invitations/"+inv.Token+"/accept", nil, ts.tokenFor(t, member))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var count int64
		require.NoError(t, ts.DB.Model(&models.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", project.ID, member.ID).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}
