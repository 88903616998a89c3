package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrInviteNotUsable    = errors.New("invitation is not usable for signup")
)

type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt}
}

type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	TenantName string // optional: name for the fresh tenant
	// InviteToken lets a signup land in an existing tenant instead of
	// creating one: the invitation's tenant, provided the invitation is
	// pending, unexpired and addressed to this email.
	InviteToken string
}

type LoginInput struct {
	Email    string
	Password string
	// TenantSlug narrows the login to one workspace. Email is only unique
	// per tenant, so without it the password decides between namesakes.
	TenantSlug string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var tenantID uuid.UUID
	var tenant models.Tenant

	if input.InviteToken != "" {
		var inv models.Invitation
		err := s.db.WithContext(ctx).
			Where("token = ? AND status = ?", input.InviteToken, models.InvitationStatusPending).
			First(&inv).Error
		if err != nil {
			return nil, ErrInviteNotUsable
		}
		if inv.Expired(time.Now()) || !strings.EqualFold(inv.Email, email) {
			return nil, ErrInviteNotUsable
		}
		if err := s.db.WithContext(ctx).First(&tenant, "id = ?", inv.TenantID).Error; err != nil {
			return nil, ErrInviteNotUsable
		}
		tenantID = tenant.ID
	}

	// Email is unique per tenant; within a fresh tenant there is nothing to
	// collide with, so only the invited path needs the check.
	if tenantID != uuid.Nil {
		var existing models.User
		if err := s.db.WithContext(ctx).
			Where("email = ? AND tenant_id = ?", email, tenantID).
			First(&existing).Error; err == nil {
			return nil, ErrUserExists
		}
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role := "member"
		if tenantID == uuid.Nil {
			name := input.TenantName
			if name == "" {
				name = input.Name + "'s Workspace"
			}
			tenant = models.Tenant{
				Name:   name,
				Slug:   generateSlug(name),
				Status: models.TenantStatusActive,
			}
			if err := tx.Create(&tenant).Error; err != nil {
				return err
			}
			tenantID = tenant.ID
			role = "owner"
		}

		user = models.User{
			Email:        email,
			PasswordHash: hash,
			Name:         input.Name,
			TenantID:     tenantID,
			Role:         role,
			IsActive:     true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		profile := models.Profile{
			ID:          user.ID,
			TenantID:    tenantID,
			DisplayName: input.Name,
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, tenantID, user.Email)
	if err != nil {
		return nil, err
	}

	user.Tenant = &tenant

	return &AuthResponse{Token: token, User: &user}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	query := s.db.WithContext(ctx).
		Preload("Tenant").
		Where("email = ?", email).
		Order("created_at ASC")

	if slug := strings.TrimSpace(input.TenantSlug); slug != "" {
		var tenant models.Tenant
		if err := s.db.WithContext(ctx).First(&tenant, "slug = ?", slug).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		query = query.Where("tenant_id = ?", tenant.ID)
	}

	// The same email can exist in several tenants (fresh signup plus an
	// invited signup), so the password is checked against every candidate.
	var candidates []models.User
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}

	loginErr := ErrInvalidCredentials
	for i := range candidates {
		user := &candidates[i]
		if !CheckPassword(input.Password, user.PasswordHash) {
			continue
		}
		if !user.IsActive {
			loginErr = ErrInactiveUser
			continue
		}
		if user.Tenant != nil && user.Tenant.Status != models.TenantStatusActive {
			loginErr = authz.ErrTenantInactive
			continue
		}

		token, err := s.jwt.GenerateToken(user.ID, user.TenantID, user.Email)
		if err != nil {
			return nil, err
		}
		return &AuthResponse{Token: token, User: user}, nil
	}

	return nil, loginErr
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Tenant").
		Preload("Profile").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	// Add timestamp to ensure uniqueness
	return slug + "-" + time.Now().Format("0601021504")
}
