package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/auth"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// TranslateError keeps duplicate-key detection portable with postgres.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Profile{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.Invitation{},
		&models.JoinRequest{},
		&models.Notification{},
		&models.Activity{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestTenant creates an active tenant
func CreateTestTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:   "Test Tenant",
		Slug:   "test-tenant-" + uuid.New().String()[:8],
		Plan:   "free",
		Status: models.TenantStatusActive,
	}

	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("failed to create test tenant: %v", err)
	}

	return tenant
}

// CreateTestUser creates an active user in the given tenant
func CreateTestUser(t *testing.T, db *gorm.DB, tenant *models.Tenant) *models.User {
	t.Helper()
	email := "test-" + uuid.New().String()[:8] + "@example.com"
	return CreateTestUserWithEmail(t, db, tenant, email)
}

// CreateTestUserWithEmail creates an active user with a fixed email
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, tenant *models.Tenant, email string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		TenantID:     tenant.ID,
		Role:         "owner",
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Tenant = tenant
	return user
}

// CreateTestProject creates a project with its owner membership row, the
// same shape project creation produces
func CreateTestProject(t *testing.T, db *gorm.DB, tenant *models.Tenant, creator *models.User) *models.Project {
	t.Helper()

	project := &models.Project{
		Base: models.Base{
			ID: uuid.New(),
		},
		TenantID:    tenant.ID,
		Name:        "Test Project",
		Description: "A project for testing",
		Status:      models.ProjectStatusActive,
		JoinCode:    randomTestJoinCode(),
		CreatedBy:   creator.ID,
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	AddTestMember(t, db, project, creator, models.RoleOwner)

	return project
}

// randomTestJoinCode yields a code in the same shape production codes use.
func randomTestJoinCode() string {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	id := uuid.New()
	code := make([]byte, 6)
	for i := range code {
		code[i] = alphabet[int(id[i])%len(alphabet)]
	}
	return string(code)
}

// AddTestMember adds an explicit membership row
func AddTestMember(t *testing.T, db *gorm.DB, project *models.Project, user *models.User, role models.ProjectRole) *models.ProjectMember {
	t.Helper()

	member := &models.ProjectMember{
		Base: models.Base{
			ID: uuid.New(),
		},
		TenantID:  project.TenantID,
		ProjectID: project.ID,
		UserID:    user.ID,
		Role:      role,
	}

	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}

	return member
}

// CreateTestInvitation creates a pending invitation for the project
func CreateTestInvitation(t *testing.T, db *gorm.DB, project *models.Project, invitedBy uuid.UUID, email string, role models.ProjectRole) *models.Invitation {
	t.Helper()

	inv := &models.Invitation{
		Base: models.Base{
			ID: uuid.New(),
		},
		TenantID:  project.TenantID,
		ProjectID: project.ID,
		Email:     email,
		Role:      role,
		Status:    models.InvitationStatusPending,
		Token:     "tok-" + uuid.New().String(),
		InvitedBy: invitedBy,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}

	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("failed to create test invitation: %v", err)
	}

	return inv
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.TenantID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FakeDispatcher records dispatched effects instead of enqueuing them.
// Satisfies the Dispatcher interfaces the lifecycle services declare.
type FakeDispatcher struct {
	mu         sync.Mutex
	Emails     []uuid.UUID
	Notified   []FakeNotification
	Activities []string
}

type FakeNotification struct {
	UserID  uuid.UUID
	Kind    string
	Payload map[string]string
}

func (f *FakeDispatcher) SendInvitationEmail(ctx context.Context, invitationID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Emails = append(f.Emails, invitationID)
}

func (f *FakeDispatcher) NotifyUser(ctx context.Context, userID, tenantID uuid.UUID, kind string, payload map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notified = append(f.Notified, FakeNotification{UserID: userID, Kind: kind, Payload: payload})
}

func (f *FakeDispatcher) RecordActivity(ctx context.Context, tenantID, projectID, actorID uuid.UUID, action, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Activities = append(f.Activities, fmt.Sprintf("%s:%s", projectID, action))
}

// NotifiedKinds lists dispatched notification kinds in order
func (f *FakeDispatcher) NotifiedKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]string, len(f.Notified))
	for i, n := range f.Notified {
		kinds[i] = n.Kind
	}
	return kinds
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Tenant     *models.Tenant
	User       *models.User
	Token      string
	Dispatcher *FakeDispatcher
}

// NewTestContext creates a complete test setup with DB, tenant, user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	tenant := CreateTestTenant(t, db)
	user := CreateTestUser(t, db, tenant)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Tenant:     tenant,
		User:       user,
		Token:      token,
		Dispatcher: &FakeDispatcher{},
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
