package authz_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/database/models"
	"github.com/hollis/taskpilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, setup *testutil.TestSetup) *authz.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return authz.NewService(setup.DB, logger)
}

func TestResolvePrincipal(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	svc := newService(t, setup)
	ctx := testutil.TestContext(t)

	t.Run("resolves active user in active tenant", func(t *testing.T) {
		p, err := svc.ResolvePrincipal(ctx, setup.User.ID)
		require.NoError(t, err)
		assert.Equal(t, setup.User.ID, p.UserID)
		assert.Equal(t, setup.Tenant.ID, p.TenantID)
		assert.Equal(t, setup.User.Email, p.Email)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.ResolvePrincipal(ctx, uuid.New())
		assert.ErrorIs(t, err, authz.ErrPrincipalNotFound)
	})

	t.Run("deactivated user", func(t *testing.T) {
		user := testutil.CreateTestUser(t, setup.DB, setup.Tenant)
		require.NoError(t, setup.DB.Model(user).Update("is_active", false).Error)

		_, err := svc.ResolvePrincipal(ctx, user.ID)
		assert.ErrorIs(t, err, authz.ErrPrincipalNotFound)
	})

	t.Run("suspended tenant", func(t *testing.T) {
		tenant := testutil.CreateTestTenant(t, setup.DB)
		user := testutil.CreateTestUser(t, setup.DB, tenant)
		require.NoError(t, setup.DB.Model(tenant).Update("status", models.TenantStatusSuspended).Error)

		_, err := svc.ResolvePrincipal(ctx, user.ID)
		assert.ErrorIs(t, err, authz.ErrTenantInactive)
	})

	t.Run("cancelled tenant", func(t *testing.T) {
		tenant := testutil.CreateTestTenant(t, setup.DB)
		user := testutil.CreateTestUser(t, setup.DB, tenant)
		require.NoError(t, setup.DB.Model(tenant).Update("status", models.TenantStatusCancelled).Error)

		_, err := svc.ResolvePrincipal(ctx, user.ID)
		assert.ErrorIs(t, err, authz.ErrTenantInactive)
	})
}

func TestEnsureSameTenant(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.NoError(t, authz.EnsureSameTenant(a, a))
	assert.ErrorIs(t, authz.EnsureSameTenant(a, b), authz.ErrTenantMismatch)
}

func TestResolveAccess(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	svc := newService(t, setup)
	ctx := testutil.TestContext(t)

	project := testutil.CreateTestProject(t, setup.DB, setup.Tenant, setup.User)

	t.Run("explicit membership wins", func(t *testing.T) {
		member := testutil.CreateTestUser(t, setup.DB, setup.Tenant)
		testutil.AddTestMember(t, setup.DB, project, member, models.RoleViewer)

		access, err := svc.ResolveAccess(ctx, member.ID, project.ID, setup.Tenant.ID)
		require.NoError(t, err)
		assert.True(t, access.HasAccess)
		assert.Equal(t, models.RoleViewer, access.Role)
	})

	t.Run("explicit row overrides creator fallback", func(t *testing.T) {
		// Demote the creator's explicit row; the fallback must not
		// resurrect Owner while the row exists.
		require.NoError(t, setup.DB.Model(&models.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", project.ID, setup.User.ID).
			Update("role", models.RoleViewer).Error)
		defer func() {
			require.NoError(t, setup.DB.Model(&models.ProjectMember{}).
				Where("project_id = ? AND user_id = ?", project.ID, setup.User.ID).
				Update("role", models.RoleOwner).Error)
		}()

		access, err := svc.ResolveAccess(ctx, setup.User.ID, project.ID, setup.Tenant.ID)
		require.NoError(t, err)
		assert.True(t, access.HasAccess)
		assert.Equal(t, models.RoleViewer, access.Role)
	})

	t.Run("creator fallback without explicit row", func(t *testing.T) {
		require.NoError(t, setup.DB.
			Where("project_id = ? AND user_id = ?", project.ID, setup.User.ID).
			Delete(&models.ProjectMember{}).Error)

		access, err := svc.ResolveAccess(ctx, setup.User.ID, project.ID, setup.Tenant.ID)
		require.NoError(t, err)
		assert.True(t, access.HasAccess)
		assert.Equal(t, models.RoleOwner, access.Role)
	})

	t.Run("missing project is no access", func(t *testing.T) {
		access, err := svc.ResolveAccess(ctx, setup.User.ID, uuid.New(), setup.Tenant.ID)
		require.NoError(t, err)
		assert.False(t, access.HasAccess)
		assert.Equal(t, models.RoleNone, access.Role)
	})

	t.Run("unrelated same-tenant user has no access", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, setup.DB, setup.Tenant)

		access, err := svc.ResolveAccess(ctx, stranger.ID, project.ID, setup.Tenant.ID)
		require.NoError(t, err)
		assert.False(t, access.HasAccess)
	})

	t.Run("cross-tenant access is a hard mismatch", func(t *testing.T) {
		otherTenant := testutil.CreateTestTenant(t, setup.DB)
		outsider := testutil.CreateTestUser(t, setup.DB, otherTenant)

		_, err := svc.ResolveAccess(ctx, outsider.ID, project.ID, otherTenant.ID)
		assert.ErrorIs(t, err, authz.ErrTenantMismatch)
	})
}

func TestProjectOwner(t *testing.T) {
	setup := testutil.NewTestContext(t)
	defer setup.Cleanup()

	svc := newService(t, setup)
	ctx := testutil.TestContext(t)

	t.Run("explicit owner row", func(t *testing.T) {
		project := testutil.CreateTestProject(t, setup.DB, setup.Tenant, setup.User)

		ownerID, err := svc.ProjectOwner(ctx, project)
		require.NoError(t, err)
		assert.Equal(t, setup.User.ID, ownerID)
	})

	t.Run("creator fallback when owner row is gone", func(t *testing.T) {
		project := testutil.CreateTestProject(t, setup.DB, setup.Tenant, setup.User)
		require.NoError(t, setup.DB.
			Where("project_id = ?", project.ID).
			Delete(&models.ProjectMember{}).Error)

		ownerID, err := svc.ProjectOwner(ctx, project)
		require.NoError(t, err)
		assert.Equal(t, setup.User.ID, ownerID)
	})
}
