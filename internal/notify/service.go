package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

// Service is the append-only write sink for notifications and project
// activity. Callers treat failures as non-fatal: log and continue.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

func (s *Service) Write(ctx context.Context, userID, tenantID uuid.UUID, kind string, payload map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	n := models.Notification{
		TenantID: tenantID,
		UserID:   userID,
		Type:     kind,
		Payload:  string(data),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.logger.Error("failed to write notification", "user_id", userID, "type", kind, "error", err)
		return err
	}
	return nil
}

func (s *Service) RecordActivity(ctx context.Context, tenantID, projectID, actorID uuid.UUID, action, detail string) error {
	a := models.Activity{
		TenantID:  tenantID,
		ProjectID: projectID,
		UserID:    actorID,
		Action:    action,
		Detail:    detail,
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		s.logger.Error("failed to record activity", "project_id", projectID, "action", action, "error", err)
		return err
	}
	return nil
}
