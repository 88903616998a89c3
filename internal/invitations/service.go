package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

// Validity window for a fresh invitation.
const TTL = 7 * 24 * time.Hour

var ErrInvalidRole = errors.New("invalid invitation role")

// Dispatcher is the post-commit effect sink. Implementations must not fail
// the request: effects run after the primary transition has committed.
type Dispatcher interface {
	SendInvitationEmail(ctx context.Context, invitationID uuid.UUID)
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

type CreateInput struct {
	ProjectID uuid.UUID
	Email     string
	Role      models.ProjectRole
}

// Create issues a pending invitation and queues the email. Caller must hold
// an administering role on the project. At most one pending invitation may
// target a given (project, email); accepted/declined/expired rows do not
// block a re-invite.
func (s *Service) Create(ctx context.Context, p *authz.Principal, input CreateInput) (*models.Invitation, error) {
	switch input.Role {
	case models.RoleAdmin, models.RoleMember, models.RoleViewer:
	default:
		// Owner is granted by project creation only, never by invitation.
		return nil, ErrInvalidRole
	}

	project, err := s.loadProject(ctx, input.ProjectID)
	if err != nil {
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

	email := strings.ToLower(strings.TrimSpace(input.Email))

	var pending models.Invitation
	err = s.db.WithContext(ctx).
		Where("project_id = ? AND email = ? AND status = ?", project.ID, email, models.InvitationStatusPending).
		First(&pending).Error
	if err == nil {
		return nil, fmt.Errorf("%w: a pending invitation for this email already exists", authz.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// An email that already maps to an explicit member needs no invitation.
	var memberCount int64
	err = s.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Joins("JOIN users ON users.id = project_members.user_id").
		Where("project_members.project_id = ? AND LOWER(users.email) = ?", project.ID, email).
		Count(&memberCount).Error
	if err != nil {
		return nil, err
	}
	if memberCount > 0 {
		return nil, fmt.Errorf("%w: user is already a member of this project", authz.ErrConflict)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	inv := models.Invitation{
		TenantID:  project.TenantID,
		ProjectID: project.ID,
		Email:     email,
		Role:      input.Role,
		Status:    models.InvitationStatusPending,
		Token:     token,
		InvitedBy: p.UserID,
		ExpiresAt: time.Now().Add(TTL),
	}
	if err := s.db.WithContext(ctx).Create(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: a pending invitation for this email already exists", authz.ErrConflict)
		}
		return nil, err
	}

	s.dispatch.SendInvitationEmail(ctx, inv.ID)

	return &inv, nil
}

// GetByToken returns a pending invitation for the public landing page. An
// invitation past its expiry is transitioned to expired as a side effect of
// the lookup (lazy expiry) and reported as Gone; consumed invitations are
// Gone as well.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Project").
		Where("token = ?", token).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}

	if inv.Status == models.InvitationStatusPending && inv.Expired(time.Now()) {
		s.expire(ctx, &inv)
		return nil, authz.ErrGone
	}
	if inv.Status != models.InvitationStatusPending {
		return nil, authz.ErrGone
	}

	return &inv, nil
}

// Accept resolves a pending invitation into a membership for the calling
// principal. The principal's email must match the invitation's target and
// the principal must live in the invitation's tenant. Membership is written
// before the status transition so that a crash between the two leaves the
// invitation re-acceptable rather than consumed without a membership.
func (s *Service) Accept(ctx context.Context, p *authz.Principal, token string) (*models.ProjectMember, error) {
	inv, err := s.loadForResolution(ctx, p, token)
	if err != nil {
		return nil, err
	}

	existing, err := s.explicitMember(ctx, inv.ProjectID, p.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Already a member: consume the invitation anyway so it cannot
		// linger pending, and report the duplicate.
		s.transition(ctx, inv, models.InvitationStatusAccepted)
		return nil, fmt.Errorf("%w: already a member of this project", authz.ErrConflict)
	}

	member := models.ProjectMember{
		TenantID:  inv.TenantID,
		ProjectID: inv.ProjectID,
		UserID:    p.UserID,
		Role:      inv.Role,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", inv.ID, models.InvitationStatusPending).
			Update("status", models.InvitationStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against a concurrent acceptance.
			return authz.ErrConflict
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// The unique (project, user) index is the backstop when the
			// membership insert itself races.
			s.transition(ctx, inv, models.InvitationStatusAccepted)
			return nil, fmt.Errorf("%w: already a member of this project", authz.ErrConflict)
		}
		return nil, err
	}

	s.dispatch.NotifyUser(ctx, inv.InvitedBy, inv.TenantID, models.NotificationInvitationAccepted, map[string]string{
		"project_id": inv.ProjectID.String(),
		"email":      p.Email,
	})
	s.dispatch.RecordActivity(ctx, inv.TenantID, inv.ProjectID, p.UserID, "member.joined", "accepted an invitation")

	return &member, nil
}

// Decline marks a pending invitation declined. Same email and tenant checks
// as Accept; no membership side effect.
func (s *Service) Decline(ctx context.Context, p *authz.Principal, token string) error {
	inv, err := s.loadForResolution(ctx, p, token)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", inv.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusDeclined)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: invitation already resolved", authz.ErrConflict)
	}

	s.dispatch.NotifyUser(ctx, inv.InvitedBy, inv.TenantID, models.NotificationInvitationDeclined, map[string]string{
		"project_id": inv.ProjectID.String(),
		"email":      p.Email,
	})

	return nil
}

// ListForProject returns every invitation for a project, newest first.
// Administering roles only.
func (s *Service) ListForProject(ctx context.Context, p *authz.Principal, projectID uuid.UUID) ([]models.Invitation, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
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

	var invs []models.Invitation
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", project.ID).
		Order("created_at DESC").
		Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

// loadForResolution applies the shared accept/decline gate: the invitation
// must exist, be pending and unexpired, be addressed to the caller's email,
// and live in the caller's tenant. Order matters — the email check precedes
// the tenant guard so the (deliberate) "issued to <email>" message is shown
// to the signed-in wrong account, while cross-tenant accounts with the right
// email still hit the mismatch error.
func (s *Service) loadForResolution(ctx context.Context, p *authz.Principal, token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}

	if inv.Status == models.InvitationStatusPending && inv.Expired(time.Now()) {
		s.expire(ctx, &inv)
		return nil, authz.ErrGone
	}
	if inv.Status != models.InvitationStatusPending {
		return nil, fmt.Errorf("%w: invitation already resolved", authz.ErrConflict)
	}

	if !strings.EqualFold(inv.Email, p.Email) {
		// Not a leak: the invitation was addressed to that email to begin
		// with, and whoever holds the token has seen it.
		return nil, fmt.Errorf("%w: this invitation was issued to %s", authz.ErrForbidden, inv.Email)
	}

	if err := authz.EnsureSameTenant(p.TenantID, inv.TenantID); err != nil {
		s.logger.Warn("cross-tenant invitation resolution attempt",
			"user_id", p.UserID,
			"caller_tenant_id", p.TenantID,
			"invitation_id", inv.ID,
		)
		return nil, err
	}

	return &inv, nil
}

func (s *Service) explicitMember(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err == nil {
		return &member, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

func (s *Service) loadProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// expire is the lazy half of the expiry state machine. Guarded on pending so
// a concurrent accept that already consumed the row is left alone.
func (s *Service) expire(ctx context.Context, inv *models.Invitation) {
	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", inv.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusExpired)
	if res.Error != nil {
		s.logger.Error("failed to expire invitation", "invitation_id", inv.ID, "error", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		inv.Status = models.InvitationStatusExpired
	}
}

// transition force-sets a terminal status outside the accept transaction.
// Used on the idempotent already-a-member path.
func (s *Service) transition(ctx context.Context, inv *models.Invitation, status models.InvitationStatus) {
	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", inv.ID, models.InvitationStatusPending).
		Update("status", status)
	if res.Error != nil {
		s.logger.Error("failed to transition invitation", "invitation_id", inv.ID, "status", status, "error", res.Error)
	}
}
