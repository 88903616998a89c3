package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// ResolvePrincipal re-resolves a credential's user id against live state.
// This runs on every request, not just at login: a user can be deleted and a
// tenant can be suspended after a token was issued. Read-only on purpose —
// no last-seen bookkeeping on the hot path.
func (s *Service) ResolvePrincipal(ctx context.Context, userID uuid.UUID) (*Principal, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrPrincipalNotFound
	}

	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "id = ?", user.TenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantInactive
		}
		return nil, err
	}
	if tenant.Status != models.TenantStatusActive {
		return nil, ErrTenantInactive
	}

	return &Principal{UserID: user.ID, TenantID: user.TenantID, Email: user.Email}, nil
}

// EnsureSameTenant is the tenant guard: a resource's declared tenant must
// equal the caller's tenant, else fail closed. It must run immediately after
// loading a resource by id and before any membership lookup, so membership
// state can never be used to infer the existence of a foreign-tenant
// resource.
func EnsureSameTenant(callerTenantID, resourceTenantID uuid.UUID) error {
	if callerTenantID != resourceTenantID {
		return ErrTenantMismatch
	}
	return nil
}

// Access is the result of resolving a user's relationship to a project.
type Access struct {
	HasAccess bool
	Role      models.ProjectRole
}

// ResolveAccess determines whether userID may act on projectID and at which
// role. The explicit ProjectMember row is the source of truth; the project
// creator keeps implicit Owner access as a fallback (see
// creatorHasImplicitOwner).
func (s *Service) ResolveAccess(ctx context.Context, userID, projectID, tenantID uuid.UUID) (Access, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ? AND tenant_id = ?", projectID, userID, tenantID).
		First(&member).Error
	if err == nil {
		return Access{HasAccess: true, Role: member.Role}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Access{}, err
	}

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Access{}, nil
		}
		return Access{}, err
	}

	// A mismatch here is louder than a plain denial: it means a bug or a
	// cross-tenant probe.
	if err := EnsureSameTenant(tenantID, project.TenantID); err != nil {
		s.logger.Warn("cross-tenant project access attempt",
			"user_id", userID,
			"caller_tenant_id", tenantID,
			"project_id", projectID,
		)
		return Access{}, err
	}

	if creatorHasImplicitOwner(&project, userID) {
		return Access{HasAccess: true, Role: models.RoleOwner}, nil
	}

	return Access{}, nil
}

// creatorHasImplicitOwner tolerates the two-step creation sequence (project
// row first, owner membership row second) by treating the creator as Owner
// whenever no explicit membership row exists. Consequence: a creator whose
// explicit row is later deleted still resolves as Owner. Keep this policy in
// one place so it can be revisited without touching call sites.
func creatorHasImplicitOwner(project *models.Project, userID uuid.UUID) bool {
	return project.CreatedBy == userID
}

// ProjectOwner resolves the user to notify for owner-directed events: the
// explicit Owner-role member, falling back to the creator when no such row
// exists. Mirrors the ResolveAccess fallback.
func (s *Service) ProjectOwner(ctx context.Context, project *models.Project) (uuid.UUID, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND role = ?", project.ID, models.RoleOwner).
		Order("created_at ASC").
		First(&member).Error
	if err == nil {
		return member.UserID, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project.CreatedBy, nil
	}
	return uuid.Nil, err
}
