package joinrequests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

// Dispatcher is the post-commit effect sink shared with the invitation
// service. Effect failures never fail the primary transition.
type Dispatcher interface {
	NotifyUser(ctx context.Context, userID, tenantID uuid.UUID, kind string, payload map[string]string)
	RecordActivity(ctx context.Context, tenantID, projectID, actorID uuid.UUID, action, detail string)
}

type Service struct {
	db       *gorm.DB
	authz    *authz.Service
	dispatch Dispatcher
	logger   *slog.Logger
}

func NewService(db *gorm.DB, authzService *authz.Service, dispatch Dispatcher, logger *slog.Logger) *Service {
	return &Service{db: db, authz: authzService, dispatch: dispatch, logger: logger}
}

// Discovery is the public-by-authentication view of a project looked up by
// its join code. Deliberately thin: no member list, no tenant id — just what
// a join page needs to render.
type Discovery struct {
	ProjectID         uuid.UUID            `json:"project_id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Status            models.ProjectStatus `json:"status"`
	IsMember          bool                 `json:"is_member"`
	HasPendingRequest bool                 `json:"has_pending_request"`
}

// Discover looks up a project by join code for any authenticated user,
// regardless of tenant. Cross-tenant users simply see is_member=false; the
// tenant restriction bites at request creation, not at discovery.
func (s *Service) Discover(ctx context.Context, p *authz.Principal, code string) (*Discovery, error) {
	project, err := s.loadByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	isMember, err := s.isMember(ctx, project, p.UserID)
	if err != nil {
		return nil, err
	}

	var pendingCount int64
	err = s.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("project_id = ? AND user_id = ? AND status = ?", project.ID, p.UserID, models.JoinRequestStatusPending).
		Count(&pendingCount).Error
	if err != nil {
		return nil, err
	}

	return &Discovery{
		ProjectID:         project.ID,
		Name:              project.Name,
		Description:       project.Description,
		Status:            project.Status,
		IsMember:          isMember,
		HasPendingRequest: pendingCount > 0,
	}, nil
}

// Create files a join request for a code-discovered project. Unlike
// invitations (which are tenant-agnostic by email), code-based joining is
// restricted to the project's own tenant. The project owner is notified;
// notification failure does not fail the request.
func (s *Service) Create(ctx context.Context, p *authz.Principal, code, message string) (*models.JoinRequest, error) {
	project, err := s.loadByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := authz.EnsureSameTenant(p.TenantID, project.TenantID); err != nil {
		s.logger.Warn("cross-tenant join request attempt",
			"user_id", p.UserID,
			"caller_tenant_id", p.TenantID,
			"project_id", project.ID,
		)
		return nil, err
	}

	isMember, err := s.isMember(ctx, project, p.UserID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, fmt.Errorf("%w: already a member of this project", authz.ErrConflict)
	}

	var pending models.JoinRequest
	err = s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ? AND status = ?", project.ID, p.UserID, models.JoinRequestStatusPending).
		First(&pending).Error
	if err == nil {
		return nil, fmt.Errorf("%w: a pending join request already exists", authz.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	req := models.JoinRequest{
		TenantID:  project.TenantID,
		ProjectID: project.ID,
		UserID:    p.UserID,
		Message:   message,
		Status:    models.JoinRequestStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, err
	}

	owner, err := s.authz.ProjectOwner(ctx, project)
	if err != nil {
		s.logger.Error("failed to resolve project owner for notification",
			"project_id", project.ID, "error", err)
	} else {
		s.dispatch.NotifyUser(ctx, owner, project.TenantID, models.NotificationJoinRequestReceived, map[string]string{
			"project_id": project.ID.String(),
			"request_id": req.ID.String(),
			"email":      p.Email,
		})
	}

	return &req, nil
}

// Accept resolves a pending request into a membership with the role fixed at
// Member; the request's desired role, if any, is never honored. A requester
// who became a member through another path in the meantime gets the request
// consumed and a Conflict, not a duplicate membership.
func (s *Service) Accept(ctx context.Context, p *authz.Principal, requestID uuid.UUID) (*models.ProjectMember, error) {
	req, err := s.loadForResolution(ctx, p, requestID)
	if err != nil {
		return nil, err
	}

	var memberCount int64
	err = s.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", req.ProjectID, req.UserID).
		Count(&memberCount).Error
	if err != nil {
		return nil, err
	}
	if memberCount > 0 {
		s.transition(ctx, req, models.JoinRequestStatusAccepted)
		return nil, fmt.Errorf("%w: requester is already a member", authz.ErrConflict)
	}

	member := models.ProjectMember{
		TenantID:  req.TenantID,
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Role:      models.RoleMember,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		res := tx.Model(&models.JoinRequest{}).
			Where("id = ? AND status = ?", req.ID, models.JoinRequestStatusPending).
			Update("status", models.JoinRequestStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return authz.ErrConflict
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.transition(ctx, req, models.JoinRequestStatusAccepted)
			return nil, fmt.Errorf("%w: requester is already a member", authz.ErrConflict)
		}
		return nil, err
	}

	s.dispatch.NotifyUser(ctx, req.UserID, req.TenantID, models.NotificationJoinRequestAccepted, map[string]string{
		"project_id": req.ProjectID.String(),
	})
	s.dispatch.RecordActivity(ctx, req.TenantID, req.ProjectID, p.UserID, "member.joined", "join request accepted")

	return &member, nil
}

// Decline marks a pending request declined and notifies the requester. No
// membership side effect.
func (s *Service) Decline(ctx context.Context, p *authz.Principal, requestID uuid.UUID) error {
	req, err := s.loadForResolution(ctx, p, requestID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", req.ID, models.JoinRequestStatusPending).
		Update("status", models.JoinRequestStatusDeclined)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: join request already resolved", authz.ErrConflict)
	}

	s.dispatch.NotifyUser(ctx, req.UserID, req.TenantID, models.NotificationJoinRequestDeclined, map[string]string{
		"project_id": req.ProjectID.String(),
	})

	return nil
}

// ListPending returns a project's pending requests for its administrators.
func (s *Service) ListPending(ctx context.Context, p *authz.Principal, projectID uuid.UUID) ([]models.JoinRequest, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	if err := authz.EnsureSameTenant(p.TenantID, project.TenantID); err != nil {
		return nil, err
	}

	access, err := s.authz.ResolveAccess(ctx, p.UserID, project.ID, p.TenantID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAdminister(access.Role) {
		return nil, authz.ErrForbidden
	}

	var reqs []models.JoinRequest
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ? AND status = ?", project.ID, models.JoinRequestStatusPending).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// loadForResolution applies the shared accept/decline gate: the request must
// exist in the caller's tenant and the caller must hold an administering
// role on its project.
func (s *Service) loadForResolution(ctx context.Context, p *authz.Principal, requestID uuid.UUID) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}

	if err := authz.EnsureSameTenant(p.TenantID, req.TenantID); err != nil {
		s.logger.Warn("cross-tenant join request resolution attempt",
			"user_id", p.UserID,
			"caller_tenant_id", p.TenantID,
			"request_id", req.ID,
		)
		return nil, err
	}

	access, err := s.authz.ResolveAccess(ctx, p.UserID, req.ProjectID, p.TenantID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAdminister(access.Role) {
		return nil, authz.ErrForbidden
	}

	if req.Status != models.JoinRequestStatusPending {
		return nil, fmt.Errorf("%w: join request already resolved", authz.ErrConflict)
	}

	return &req, nil
}

// transition best-effort consumes a pending request once its outcome has been
// decided elsewhere; failures are logged, never returned.
func (s *Service) transition(ctx context.Context, req *models.JoinRequest, status models.JoinRequestStatus) {
	err := s.db.WithContext(ctx).Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", req.ID, models.JoinRequestStatusPending).
		Update("status", status).Error
	if err != nil {
		s.logger.Error("failed to transition join request",
			"request_id", req.ID, "status", status, "error", err)
	}
}

// isMember covers both the explicit membership row and the creator fallback,
// computed without the tenant guard so cross-tenant discovery stays quiet.
func (s *Service) isMember(ctx context.Context, project *models.Project, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	return project.CreatedBy == userID, nil
}

func (s *Service) loadByCode(ctx context.Context, code string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "join_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}
