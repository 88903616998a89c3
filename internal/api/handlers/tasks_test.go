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

func TestCreateTask(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)
	base := "/api/v1/projects/" + project.ID.String() + "/tasks"

	t.Run("defaults to todo and medium priority", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, base, map[string]string{"title": "Ship it"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp TaskResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "todo", resp.Status)
		assert.Equal(t, "medium", resp.Priority)
	})

	t.Run("member can create, viewer cannot", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)
		rr := ts.do(t, http.MethodPost, base, map[string]string{"title": "From member"}, ts.tokenFor(t, member))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		viewer := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, viewer, models.RoleViewer)
		rr = ts.do(t, http.MethodPost, base, map[string]string{"title": "From viewer"}, ts.tokenFor(t, viewer))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("assignee must be a project member", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		rr := ts.do(t, http.MethodPost, base, map[string]string{
			"title":       "Misassigned",
			"assignee_id": outsider.ID.String(),
		}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("assigning a member works", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		rr := ts.do(t, http.MethodPost, base, map[string]string{
			"title":       "Assigned",
			"assignee_id": member.ID.String(),
		}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp TaskResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.AssigneeID)
		assert.Equal(t, member.ID.String(), *resp.AssigneeID)
	})

	t.Run("bad priority is rejected", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, base, map[string]string{
			"title":    "Urgent?",
			"priority": "critical",
		}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestListTasks(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)
	base := "/api/v1/projects/" + project.ID.String() + "/tasks"

	for _, title := range []string{"one", "two", "three"} {
		rr := ts.do(t, http.MethodPost, base, map[string]string{"title": title}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	t.Run("viewer can read", func(t *testing.T) {
		viewer := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, viewer, models.RoleViewer)

		rr := ts.do(t, http.MethodGet, base, nil, ts.tokenFor(t, viewer))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page paginatedTasks
		testutil.ParseJSONResponse(t, rr, &page)
		assert.Equal(t, int64(3), page.Total)
	})

	t.Run("status filter", func(t *testing.T) {
		var task models.Task
		require.NoError(t, ts.DB.Where("project_id = ?", project.ID).First(&task).Error)
		require.NoError(t, ts.DB.Model(&task).Update("status", models.TaskStatusDone).Error)

		rr := ts.do(t, http.MethodGet, base+"?status=done", nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page paginatedTasks
		testutil.ParseJSONResponse(t, rr, &page)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "done", page.Data[0].Status)
	})
}

func TestUpdateTask(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)
	base := "/api/v1/projects/" + project.ID.String() + "/tasks"

	rr := ts.do(t, http.MethodPost, base, map[string]string{"title": "Flow"}, ts.Token)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var task TaskResponse
	testutil.ParseJSONResponse(t, rr, &task)

	t.Run("status moves through the board", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, base+"/"+task.ID, map[string]string{"status": "in_progress"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp TaskResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "in_progress", resp.Status)
	})

	t.Run("viewer cannot update", func(t *testing.T) {
		viewer := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, viewer, models.RoleViewer)

		rr := ts.do(t, http.MethodPut, base+"/"+task.ID, map[string]string{"status": "done"}, ts.tokenFor(t, viewer))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("clearing the assignee", func(t *testing.T) {
		member := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, member, models.RoleMember)

		rr := ts.do(t, http.MethodPut, base+"/"+task.ID, map[string]string{"assignee_id": member.ID.String()}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = ts.do(t, http.MethodPut, base+"/"+task.ID, map[string]string{"assignee_id": ""}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp TaskResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Nil(t, resp.AssigneeID)
	})

	t.Run("unknown task", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, base+"/"+uuid.NewString(), map[string]string{"status": "done"}, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestDeleteTask(t *testing.T) {
	ts := newTestServer(t)
	project := testutil.CreateTestProject(t, ts.DB, ts.Tenant, ts.User)
	base := "/api/v1/projects/" + project.ID.String() + "/tasks"

	rr := ts.do(t, http.MethodPost, base, map[string]string{"title": "Short lived"}, ts.Token)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var task TaskResponse
	testutil.ParseJSONResponse(t, rr, &task)

	t.Run("viewer cannot delete", func(t *testing.T) {
		viewer := testutil.CreateTestUser(t, ts.DB, ts.Tenant)
		testutil.AddTestMember(t, ts.DB, project, viewer, models.RoleViewer)

		rr := ts.do(t, http.MethodDelete, base+"/"+task.ID, nil, ts.tokenFor(t, viewer))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("member deletes", func(t *testing.T) {
		rr := ts.do(t, http.MethodDelete, base+"/"+task.ID, nil, ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var count int64
		require.NoError(t, ts.DB.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error)
		assert.Zero(t, count)
	})
}
